// Command nat64d is the daemon entry point: it loads an EngineConfig,
// builds the engine(s) it describes, opens the TUN device, and runs the
// read/translate/write loop. Kept deliberately thin (SPEC_FULL.md §2):
// everything it does is a call into internal/config, internal/engine, or
// internal/tun.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/miekg/dns"

	"github.com/ruilisi/nat64d/internal/config"
	"github.com/ruilisi/nat64d/internal/dns64"
	"github.com/ruilisi/nat64d/internal/engine"
	"github.com/ruilisi/nat64d/internal/engineid"
	"github.com/ruilisi/nat64d/internal/logging"
	"github.com/ruilisi/nat64d/internal/translate"
	"github.com/ruilisi/nat64d/internal/tun"
)

// workers is the read-loop goroutine count (spec.md §5's worker pool).
const workers = 4

func main() {
	configPath := flag.String("config", "/etc/nat64d.yaml", "path to the engine YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "nat64d:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	id := engineid.HostID()
	log := logging.New(string(cfg.Mode), logging.ParseLevel(cfg.LogLevel))

	eng, err := buildEngine(cfg, log)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	if cfg.DNS64.Enabled {
		if err := startDNS64(cfg, log); err != nil {
			return fmt.Errorf("dns64: %w", err)
		}
	}

	dev, err := tun.Open(tun.Config{
		Name: cfg.Interface,
		MTU:  cfg.MTU,
	})
	if err != nil {
		return fmt.Errorf("open tun: %w", err)
	}
	defer dev.Close()

	log.Infof("engine %s ready on %s (mode=%s)", id, cfg.Interface, cfg.Mode)

	var wg sync.WaitGroup
	bufPool := sync.Pool{New: func() interface{} { return make([]byte, cfg.MTU+20) }}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			readLoop(dev, eng, log, &bufPool)
		}()
	}
	wg.Wait()
	return nil
}

func readLoop(dev io.ReadWriteCloser, eng *engine.Engine, log *logging.Logger, bufPool *sync.Pool) {
	for {
		buf := bufPool.Get().([]byte)
		n, err := dev.Read(buf)
		if err != nil {
			log.Errorf("tun read: %v", err)
			bufPool.Put(buf)
			return
		}

		out, err := eng.HandlePacket(buf[:n])
		bufPool.Put(buf)
		if err != nil {
			continue // already logged/counted by Engine.HandlePacket
		}

		if _, err := dev.Write(out); err != nil {
			log.Errorf("tun write: %v", err)
		}
	}
}

// startDNS64 builds a dns64.Resolver from cfg.DNS64 and the engine's NAT64
// prefix, then serves it over UDP on a background goroutine, answering
// AAAA queries through Resolver.SynthesizeAAAA (SPEC_FULL.md §6). Mirrors the
// teacher's dns/local.go serve-forever shape.
func startDNS64(cfg *config.EngineConfig, log *logging.Logger) error {
	nat64IP, nat64Len, err := parseCIDR(cfg.NAT64Prefix)
	if err != nil {
		return fmt.Errorf("nat64_prefix: %w", err)
	}

	resolver := &dns64.Resolver{
		Upstream:       cfg.DNS64.Upstream,
		NAT64Prefix:    nat64IP,
		NAT64PrefixLen: nat64Len,
	}

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, req *dns.Msg) {
		if len(req.Question) != 1 || req.Question[0].Qtype != dns.TypeAAAA {
			dns.HandleFailed(w, req)
			return
		}
		reply, err := resolver.SynthesizeAAAA(context.Background(), req.Question[0].Name)
		if err != nil {
			log.Warnf("dns64: synthesize %s: %v", req.Question[0].Name, err)
			dns.HandleFailed(w, req)
			return
		}
		reply.Id = req.Id
		_ = w.WriteMsg(reply)
	})

	server := &dns.Server{Addr: cfg.DNS64.Listen, Net: "udp", Handler: mux}
	go func() {
		log.Infof("dns64 resolver listening on %s", cfg.DNS64.Listen)
		if err := server.ListenAndServe(); err != nil {
			log.Errorf("dns64 server: %v", err)
		}
	}()
	return nil
}

func buildEngine(cfg *config.EngineConfig, log *logging.Logger) (*engine.Engine, error) {
	nat64IP, nat64Len, err := parseCIDR(cfg.NAT64Prefix)
	if err != nil {
		return nil, fmt.Errorf("nat64_prefix: %w", err)
	}

	mode, err := translateMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	ecfg := engine.Config{
		ID:             engineid.HostID(),
		Log:            log,
		Mode:           mode,
		NAT64Prefix:    nat64IP,
		NAT64PrefixLen: nat64Len,
		MaxIdle:        cfg.MaxIdle(),
	}

	for _, p := range cfg.Pool {
		_, ipnet, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("pool entry %q: %w", p, err)
		}
		ecfg.Pool = append(ecfg.Pool, ipnet)
	}

	for _, sm := range cfg.StaticMappings {
		v4 := net.ParseIP(sm.V4)
		v6 := net.ParseIP(sm.V6)
		if v4 == nil || v6 == nil {
			return nil, fmt.Errorf("static mapping %q<->%q: invalid address", sm.V4, sm.V6)
		}
		ecfg.StaticMappings = append(ecfg.StaticMappings, engine.StaticMapping{V4: v4, V6: v6})
	}

	if mode == translate.ModeCLAT {
		custIP, custLen, err := parseCIDR(cfg.CustomerPrefix)
		if err != nil {
			return nil, fmt.Errorf("customer_prefix: %w", err)
		}
		ecfg.CustomerPrefix = custIP
		ecfg.CustomerPrefixLen = custLen
	}

	return engine.New(ecfg)
}

func translateMode(m config.Mode) (translate.Mode, error) {
	switch m {
	case config.ModeNAT64:
		return translate.ModeNAT64, nil
	case config.ModeCLAT:
		return translate.ModeCLAT, nil
	case config.ModeSixOverFour:
		return translate.ModeSixOverFour, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", m)
	}
}

func parseCIDR(s string) (net.IP, int, error) {
	ip, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		return nil, 0, err
	}
	ones, _ := ipnet.Mask.Size()
	return ip, ones, nil
}
