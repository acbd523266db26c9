/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package quantity

import "testing"

func TestParseCPU(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"500m", 500, false},
		{"1", 1000, false},
		{"2.5", 2500, false},
		{"1.0005", 1000, false}, // banker's rounding: 1000.5 rounds to even 1000
		{"1.0015", 1002, false}, // 1001.5 rounds to even 1002
		{"-1", 0, true},
		{"-500m", 0, true},
		{"abc", 0, true},
	}
	for _, c := range cases {
		got, err := ParseCPU(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("ParseCPU(%q) error = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if err == nil && got != c.want {
			t.Errorf("ParseCPU(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestFormatCPU(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{1000, "1"},
		{2500, "2500m"},
		{500, "500m"},
	}
	for _, c := range cases {
		if got := FormatCPU(c.in); got != c.want {
			t.Errorf("FormatCPU(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseMemory(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"1024", 1024, false},
		{"1Ki", 1024, false},
		{"1Mi", 1 << 20, false},
		{"1Gi", 1 << 30, false},
		{"1G", 1_000_000_000, false},
		{"-1Ki", 0, true},
		{"not-a-quantity", 0, true},
	}
	for _, c := range cases {
		got, err := ParseMemory(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("ParseMemory(%q) error = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if err == nil && got != c.want {
			t.Errorf("ParseMemory(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestFormatMemoryRoundTrip(t *testing.T) {
	cases := []int64{0, 1024, 1 << 20, 1 << 30, 3 * (1 << 20), 1234567}
	for _, bytes := range cases {
		s := FormatMemory(bytes)
		got, err := ParseMemory(s)
		if err != nil {
			t.Fatalf("ParseMemory(FormatMemory(%d)=%q) errored: %v", bytes, s, err)
		}
		if got != bytes {
			t.Errorf("round trip %d -> %q -> %d", bytes, s, got)
		}
	}
}

func TestParseGPU(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"2", 2, false},
		{"4GPU", 4, false},
		{"4gpu", 4, false},
		{"1 GPU", 1, false},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, c := range cases {
		got, err := ParseGPU(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("ParseGPU(%q) error = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if err == nil && got != c.want {
			t.Errorf("ParseGPU(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
