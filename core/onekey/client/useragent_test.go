package client

import "testing"

func TestKnownToSupport3PC(t *testing.T) {
	cases := []struct {
		name      string
		userAgent string
		want      bool
	}{
		{
			"chrome",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			true,
		},
		{
			"chromium edge",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
			true,
		},
		{
			"opera",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 OPR/106.0.0.0",
			true,
		},
		{
			"samsung internet",
			"Mozilla/5.0 (Linux; Android 13) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/23.0 Chrome/115.0.0.0 Mobile Safari/537.36",
			true,
		},
		{
			"firefox",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
			false,
		},
		{
			"safari",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			false,
		},
		{"unknown bot", "curl/8.4.0", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KnownToSupport3PC(tc.userAgent); got != tc.want {
				t.Errorf("KnownToSupport3PC(%q) = %v, want %v", tc.userAgent, got, tc.want)
			}
		})
	}
}
