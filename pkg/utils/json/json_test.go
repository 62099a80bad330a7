package json

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID       string   `json:"id"`
	Subject  string   `json:"subject"`
	Topics   []string `json:"topics,omitempty"`
	Answered bool     `json:"answered"`
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	in := record{
		ID:      "fc-001",
		Subject: "Anatomy",
		Topics:  []string{"Osteology", "Myology"},
	}

	data, err := Marshal(in)
	require.NoError(t, err)

	var out record
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalIndent(t *testing.T) {
	data, err := MarshalIndent(map[string]any{"subjects": []string{"Anatomy"}}, "", "  ")
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, "\n")
	assert.Contains(t, s, `"subjects"`)

	var out map[string]any
	require.NoError(t, Unmarshal(data, &out))
}

func TestUnmarshalInvalid(t *testing.T) {
	var out record
	assert.Error(t, Unmarshal([]byte(`{"id":`), &out))
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(record{ID: "q-007", Subject: "Physiology"}))

	var out record
	require.NoError(t, NewDecoder(&buf).Decode(&out))
	assert.Equal(t, "q-007", out.ID)
	assert.Equal(t, "Physiology", out.Subject)
}

func TestDecoderSequentialValues(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"id":"a"}{"id":"b"}`))

	var first, second record
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, "a", first.ID)
	assert.Equal(t, "b", second.ID)
}

func TestOmitEmpty(t *testing.T) {
	data, err := Marshal(record{ID: "x"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "topics")
}

func TestConfigModeSwitching(t *testing.T) {
	// Mode switches are no-ops on the stdlib fallback; either way the
	// facade must stay functional after switching back and forth.
	ConfigFastestMode()
	defer ConfigStandardMode()

	data, err := Marshal(record{ID: "fast"})
	require.NoError(t, err)

	var out record
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, "fast", out.ID)
}

func BenchmarkMarshalRecord(b *testing.B) {
	in := record{
		ID:      "fc-001",
		Subject: "Anatomy",
		Topics:  []string{"Osteology", "Myology", "Cardiovascular System"},
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Marshal(in); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUnmarshalRecord(b *testing.B) {
	data := []byte(`{"id":"fc-001","subject":"Anatomy","topics":["Osteology","Myology"],"answered":true}`)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var out record
		if err := Unmarshal(data, &out); err != nil {
			b.Fatal(err)
		}
	}
}
