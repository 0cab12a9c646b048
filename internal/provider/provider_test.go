package provider

import (
	"testing"
)

func TestRotate_PreferredFirst(t *testing.T) {
	cases := []struct {
		preferred Provider
		want      []Provider
	}{
		{ProviderGemini, []Provider{ProviderGemini, ProviderOpenAI, ProviderAnthropic}},
		{ProviderOpenAI, []Provider{ProviderOpenAI, ProviderGemini, ProviderAnthropic}},
		{ProviderAnthropic, []Provider{ProviderAnthropic, ProviderGemini, ProviderOpenAI}},
	}
	for _, tc := range cases {
		got := Rotate(tc.preferred)
		if len(got) != len(tc.want) {
			t.Fatalf("Rotate(%s) = %v, want %v", tc.preferred, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("Rotate(%s) = %v, want %v", tc.preferred, got, tc.want)
				break
			}
		}
	}
}

func TestRotate_UnknownPreferredYieldsCanonical(t *testing.T) {
	got := Rotate(Provider("mistral"))
	want := CanonicalOrder()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Rotate(unknown) = %v, want canonical %v", got, want)
		}
	}
}

func TestRotate_EachProviderExactlyOnce(t *testing.T) {
	for _, preferred := range append(CanonicalOrder(), Provider("bogus")) {
		seen := map[Provider]int{}
		for _, p := range Rotate(preferred) {
			seen[p]++
		}
		if len(seen) != 3 {
			t.Errorf("Rotate(%s) has %d distinct providers, want 3", preferred, len(seen))
		}
		for p, n := range seen {
			if n != 1 {
				t.Errorf("Rotate(%s) contains %s %d times", preferred, p, n)
			}
		}
	}
}

func TestParse(t *testing.T) {
	for _, name := range []string{"gemini", "openai", "anthropic"} {
		if _, err := Parse(name); err != nil {
			t.Errorf("Parse(%q) error = %v", name, err)
		}
	}
	if _, err := Parse("cohere"); err == nil {
		t.Error("Parse accepted an unknown provider")
	}
}

func TestError_MessageAndUnwrap(t *testing.T) {
	inner := &Error{Provider: ProviderOpenAI, Kind: KindQuota, Message: "rate limit exceeded (429)"}
	outer := newError(ProviderOpenAI, KindTransport, "max retries exceeded", inner)

	if got := outer.Error(); got != "openai: max retries exceeded: openai: rate limit exceeded (429)" {
		t.Errorf("Error() = %q", got)
	}
	if outer.Unwrap() != inner {
		t.Error("Unwrap() did not return the wrapped error")
	}
}
