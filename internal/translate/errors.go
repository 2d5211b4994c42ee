package translate

import "errors"

// Error taxonomy from spec.md §7. All are per-packet and result in the
// packet being dropped; none abort the worker (the translator is total on
// well-formed input).
var (
	ErrTruncatedPacket     = errors.New("translate: truncated packet")
	ErrUnsupportedNextHeader = errors.New("translate: unsupported next header / encapsulation")
	ErrTtlExceeded         = errors.New("translate: ttl/hop limit exceeded")
	ErrUntranslatable      = errors.New("translate: no v4/v6 counterpart for this ICMP type")
	ErrNoMapping           = errors.New("translate: no NAT table entry for destination")
	ErrNotCustomer         = errors.New("translate: address does not lie under the configured customer prefix")
	ErrFragmented          = errors.New("translate: fragmented datagrams are not reassembled")
)
