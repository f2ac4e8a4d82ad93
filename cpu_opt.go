package main

import (
	"fmt"
	"runtime"
	"strings"

	cpuid "github.com/klauspost/cpuid/v2"
)

const (
	engineAuto    = "auto"
	engineGeneric = "generic"
	engineSIMD    = "simd"
)

// simdExt names the hardware SHA-256 extension sha256-simd can use on this
// host, or is empty when it would only run its portable code.
var simdExt string

func init() {
	// On ARM64 some features require explicit detection
	if runtime.GOARCH == "arm64" {
		cpuid.DetectARM()
	}

	switch runtime.GOARCH {
	case "amd64":
		if cpuid.CPU.Supports(cpuid.SHA, cpuid.SSSE3, cpuid.SSE4) {
			simdExt = "shani"
		}
	case "arm64":
		if cpuid.CPU.Supports(cpuid.SHA2) {
			simdExt = "armv8"
		}
	}
}

// resolveEngine maps the -engine flag to a concrete backend. auto picks simd
// only when the CPU has SHA instructions; checkpointing needs generic since
// only it exposes a midstate.
func resolveEngine(name string, checkpointing bool) (string, error) {
	switch name {
	case engineAuto:
		if simdExt != "" && !checkpointing {
			return engineSIMD, nil
		}
		return engineGeneric, nil
	case engineGeneric:
		return engineGeneric, nil
	case engineSIMD:
		if checkpointing {
			return "", fmt.Errorf("engine simd cannot be combined with -checkpoint-dir: %w", errUsage)
		}
		return engineSIMD, nil
	default:
		return "", fmt.Errorf("unknown engine %q: %w", name, errUsage)
	}
}

// describeEngine reports the selected backend and the CPU features behind it.
func describeEngine(engine string) string {
	var b strings.Builder
	b.WriteString(engine)
	if engine == engineSIMD {
		if simdExt != "" {
			fmt.Fprintf(&b, "(%s)", simdExt)
		} else {
			b.WriteString("(portable)")
		}
	}
	brand := strings.TrimSpace(cpuid.CPU.BrandName)
	if brand == "" {
		brand = "unknown cpu"
	}
	fmt.Fprintf(&b, " on %s %s/%s", brand, runtime.GOOS, runtime.GOARCH)
	return b.String()
}
