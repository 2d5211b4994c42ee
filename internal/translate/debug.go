package translate

import "fmt"

// DumpHex renders data as a hex + ASCII dump, one 16-byte line at a time,
// for debug-level logging of packets the translator could not handle.
func DumpHex(data []byte) string {
	const bytesPerLine = 16
	var out string
	for i := 0; i < len(data); i += bytesPerLine {
		end := i + bytesPerLine
		if end > len(data) {
			end = len(data)
		}

		line := ""
		for j := i; j < end; j++ {
			line += fmt.Sprintf("%02x ", data[j])
		}
		for j := end; j < i+bytesPerLine; j++ {
			line += "   "
		}

		line += " "
		for j := i; j < end; j++ {
			c := data[j]
			if c >= 32 && c <= 126 {
				line += string(rune(c))
			} else {
				line += "."
			}
		}
		out += line + "\n"
	}
	return out
}
