package bytesize

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    ByteSize
		wantErr bool
	}{
		{"1024", 1024, false},
		{"1Ki", KiB, false},
		{"8Mi", 8 * MiB, false},
		{"5MiB", 5 * MiB, false},
		{"20GB", 20 * GB, false},
		{"1.5Gi", ByteSize(1.5 * float64(GiB)), false},
		{"  2 Ti ", 2 * TiB, false},
		{"100b", 100, false},
		{"", 0, true},
		{"abc", 0, true},
		{"10Xi", 0, true},
		{"-5Mi", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   ByteSize
		want string
	}{
		{8 * MiB, "8Mi"},
		{5 * GiB, "5Gi"},
		{1024, "1Ki"},
		{1000, "1000"},
	}

	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", uint64(tt.in), got, tt.want)
		}
	}
}

func TestTextRoundTrip(t *testing.T) {
	orig := 10 * MiB
	text, err := orig.MarshalText()
	if err != nil {
		t.Fatal(err)
	}

	var parsed ByteSize
	if err := parsed.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if parsed != orig {
		t.Errorf("round trip changed value: %d -> %d", orig, parsed)
	}
}
