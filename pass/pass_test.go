package pass

import (
	"strings"
	"testing"
)

func TestFieldID_Channels(t *testing.T) {
	tests := []struct {
		f        FieldID
		channels int
		double   bool
	}{
		{Velocity, 2, true},
		{Pressure, 1, true},
		{Divergence, 1, false},
		{Curl, 1, false},
		{Dye, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.f.String(), func(t *testing.T) {
			if got := tt.f.Channels(); got != tt.channels {
				t.Errorf("Channels() = %d, want %d", got, tt.channels)
			}
			if got := tt.f.DoubleBuffered(); got != tt.double {
				t.Errorf("DoubleBuffered() = %v, want %v", got, tt.double)
			}
		})
	}
	if len(Fields()) != int(fieldCount) {
		t.Errorf("Fields() has %d entries, want %d", len(Fields()), fieldCount)
	}
}

func TestKernel_SourcesAndNames(t *testing.T) {
	for _, k := range Kernels() {
		if len(k.Sources()) == 0 {
			t.Errorf("%v has no sources", k)
		}
		if strings.HasPrefix(k.String(), "Kernel(") {
			t.Errorf("kernel %d has no name", uint8(k))
		}
	}
	if got := Kernel(200).String(); got != "Kernel(200)" {
		t.Errorf("unknown kernel String() = %q", got)
	}
}

func TestLen(t *testing.T) {
	if got := Len(Dye, 4, 5); got != 60 {
		t.Errorf("Len(Dye,4,5) = %d, want 60", got)
	}
}

func TestValidate_Accepts(t *testing.T) {
	tests := []struct {
		k   Kernel
		src Sources
		dst FieldID
	}{
		{KernelCurl, Sources{SrcVelocity: Velocity}, Curl},
		{KernelVorticity, Sources{SrcVelocity: Velocity, SrcCurl: Curl}, Velocity},
		{KernelAdvect, Sources{SrcVelocity: Velocity, SrcSource: Dye}, Dye},
		{KernelAdvect, Sources{SrcVelocity: Velocity, SrcSource: Velocity}, Velocity},
		{KernelDivergence, Sources{SrcVelocity: Velocity}, Divergence},
		{KernelClear, Sources{SrcSource: Pressure}, Pressure},
		{KernelJacobi, Sources{SrcPressure: Pressure, SrcDivergence: Divergence}, Pressure},
		{KernelGradient, Sources{SrcPressure: Pressure, SrcVelocity: Velocity}, Velocity},
		{KernelSplat, Sources{SrcSource: Dye}, Dye},
	}
	for _, tt := range tests {
		t.Run(tt.k.String(), func(t *testing.T) {
			Validate(tt.k, tt.src, tt.dst)
		})
	}
}

func TestValidate_Panics(t *testing.T) {
	tests := []struct {
		name string
		k    Kernel
		src  Sources
		dst  FieldID
		msg  string
	}{
		{"missing source", KernelVorticity, Sources{SrcVelocity: Velocity}, Velocity, "missing source"},
		{"single-buffered feedback", KernelCurl, Sources{SrcVelocity: Curl}, Curl, "both source and destination"},
		{"advect mismatch", KernelAdvect, Sources{SrcVelocity: Velocity, SrcSource: Dye}, Velocity, "must match"},
		{"unknown kernel", Kernel(99), Sources{}, Dye, "unknown kernel"},
		{"unknown destination", KernelSplat, Sources{SrcSource: Dye}, FieldID(42), "unknown destination"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("Validate did not panic")
				}
				if s, _ := r.(string); !strings.Contains(s, tt.msg) {
					t.Errorf("panic = %v, want substring %q", r, tt.msg)
				}
			}()
			Validate(tt.k, tt.src, tt.dst)
		})
	}
}
