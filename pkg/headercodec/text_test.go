package headercodec_test

import (
	"strings"
	"testing"

	"github.com/illmade-knight/go-malhttp/pkg/headercodec"
	"github.com/illmade-knight/go-malhttp/pkg/mal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURIEncoding(t *testing.T) {
	for _, uri := range []string{
		"malhttp://host:8080/path",
		"malhttp://host/with space/and%percent",
		"malhttp://hôte/ünïcode?q=1&r=2#frag",
	} {
		encoded := headercodec.EncodeURI(uri)
		assert.NotContains(t, encoded, " ")
		decoded, err := headercodec.DecodeURI(headercodec.HeaderURIFrom, encoded)
		require.NoError(t, err)
		assert.Equal(t, uri, decoded)
	}

	assert.Equal(t, "malhttp://h/a%20b", headercodec.EncodeURI("malhttp://h/a b"))
}

func TestTextEncoding(t *testing.T) {
	for _, text := range []string{
		"GROUND",
		"Zone Ünïcode",
		" leading space",
		"looks =?like?= a word",
		strings.Repeat("日本語", 40),
	} {
		encoded := headercodec.EncodeText(text)
		for _, r := range encoded {
			require.Less(t, r, rune(0x80), "encoded text must be ASCII: %q", encoded)
		}
		decoded, err := headercodec.DecodeText(headercodec.HeaderNetworkZone, encoded)
		require.NoError(t, err)
		assert.Equal(t, text, decoded)
	}

	assert.Equal(t, "GROUND", headercodec.EncodeText("GROUND"), "plain ASCII is left alone")
}

func TestDomainEncoding(t *testing.T) {
	domain := []string{"esa", "a.b", "Ünïcode"}

	encoded := headercodec.EncodeDomain(domain)
	assert.Equal(t, 3, len(strings.Split(encoded, ".")))

	decoded, err := headercodec.DecodeDomain(encoded)
	require.NoError(t, err)
	assert.Equal(t, domain, decoded)

	empty, err := headercodec.DecodeDomain(headercodec.EncodeDomain(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBlobEncoding(t *testing.T) {
	assert.Equal(t, "", headercodec.EncodeBlob(nil))
	assert.Equal(t, "00ff7f", headercodec.EncodeBlob(mal.Blob{0x00, 0xff, 0x7f}))

	decoded, err := headercodec.DecodeBlob("00FF7f")
	require.NoError(t, err)
	assert.Equal(t, mal.Blob{0x00, 0xff, 0x7f}, decoded)

	_, err = headercodec.DecodeBlob("0g")
	assert.ErrorIs(t, err, headercodec.ErrMalformedField)
}
