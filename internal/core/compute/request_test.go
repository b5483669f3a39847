package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCreateServer(t *testing.T) {
	body := `{"server": {
		"name": "web1",
		"imageRef": "ubuntu-22.04",
		"flavorRef": 2,
		"availability_zone": "fsn1",
		"key_name": "deploy",
		"networks": [{"uuid": "489586"}, {"uuid": 489588}],
		"metadata": {"role": "web"}
	}}`

	req, err := DecodeCreateServer([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "web1", req.Name)
	assert.Equal(t, Ref("ubuntu-22.04"), req.ImageRef)
	assert.Equal(t, Ref("2"), req.FlavorRef)
	assert.Equal(t, "fsn1", req.AvailabilityZone)
	assert.Equal(t, "deploy", req.KeyName)
	assert.Equal(t, []NetworkRef{{UUID: "489586"}, {UUID: "489588"}}, req.Networks)
	assert.JSONEq(t, `{"role": "web"}`, string(req.Metadata))
	assert.Nil(t, req.UserData)
}

func TestDecodeCreateServer_Malformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":        `server`,
		"missing server":  `{"name": "web1"}`,
		"null server":     `{"server": null}`,
		"bool flavor ref": `{"server": {"flavorRef": true}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCreateServer([]byte(body))
			require.Error(t, err)
			assert.True(t, IsKind(err, KindInvalidRequest))
			assert.Equal(t, MsgMalformedBody, err.Error())
		})
	}
}

func TestRef_Null(t *testing.T) {
	req, err := DecodeCreateServer([]byte(`{"server": {"flavorRef": null}}`))
	require.NoError(t, err)
	assert.Equal(t, Ref(""), req.FlavorRef)
}
