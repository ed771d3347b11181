package funnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitelens/sitelens-engine/pkg/apperrors"
	"github.com/sitelens/sitelens-engine/pkg/models"
)

func TestShareState_RoundTrip(t *testing.T) {
	in := models.Funnel{
		Steps: []models.FunnelStep{
			pathStep("/"),
			{
				Kind:       models.StepEvent,
				Value:      "submit",
				EventScope: models.ScopeCurrentPath,
				Params: []models.StepParam{
					{Key: "url", Value: "https://a:b", Operator: models.ParamContains},
				},
			},
			pathStep("/takk"),
		},
		DirectEntryOnly: true,
	}

	encoded := EncodeShareState(in)
	out, err := DecodeShareState("?" + encoded)
	require.NoError(t, err)

	assert.Equal(t, Normalize(in.Steps), out.Steps)
	assert.True(t, out.DirectEntryOnly)
}

func TestShareState_RoundTripSeparators(t *testing.T) {
	tests := map[string]models.FunnelStep{
		"colon in key": {
			Kind: models.StepEvent, Value: "signup",
			Params: []models.StepParam{{Key: "utm:source", Value: "x", Operator: models.ParamContains}},
		},
		"colons everywhere": {
			Kind: models.StepEvent, Value: "cta:hero", EventScope: models.ScopeCurrentPath,
			Params: []models.StepParam{
				{Key: "a:b:c", Value: "d:e", Operator: models.ParamEquals},
				{Key: "ref", Value: "https://x.no:8443/p?q=1", Operator: models.ParamContains},
			},
		},
		"escape-like key": {
			Kind: models.StepEvent, Value: "buy",
			Params: []models.StepParam{{Key: "50%+off key", Value: "yes", Operator: models.ParamEquals}},
		},
	}

	for name, step := range tests {
		t.Run(name, func(t *testing.T) {
			in := models.Funnel{Steps: []models.FunnelStep{pathStep("/"), step, pathStep("/done")}}

			out, err := DecodeShareState(EncodeShareState(in))
			require.NoError(t, err)
			assert.Equal(t, Normalize(in.Steps), out.Steps)
		})
	}
}

func TestEncodeShareState_Format(t *testing.T) {
	encoded := EncodeShareState(models.Funnel{Steps: []models.FunnelStep{pathStep("/a/"), eventStep("go")}})

	assert.Equal(t, "step=path%3A%2Fa&step=event%3Ago", encoded)
}

func TestDecodeShareState_Invalid(t *testing.T) {
	tests := []string{
		"step=click:x",
		"step=nocolon",
		"step=path:/&scope=3:current-path",
		"step=path:/&param=0:onlykey",
		"step=path:/&param=x:k:equals:v",
		"step=path:/&param=0:k:like:v",
		"step=path:/&param=0:%25zz:equals:v",
		"step=%zz",
	}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := DecodeShareState(raw)
			assert.ErrorIs(t, err, apperrors.ErrInvalidShareState)
		})
	}
}
