package funnel

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sitelens/sitelens-engine/pkg/apperrors"
	"github.com/sitelens/sitelens-engine/pkg/models"
)

// Share state query keys.
const (
	shareKeyStep   = "step"
	shareKeyParam  = "param"
	shareKeyScope  = "scope"
	shareKeyDirect = "direct"
)

// EncodeShareState serializes a funnel into a query string so it can be
// restored from a shared link. Steps are normalized first.
//
//	step=path:/a&step=event:signup&param=1:plan:equals:pro&scope=1:current-path&direct=1
//
// Param keys are query-escaped inside the entry so a ':' in a key cannot shift
// the operator and value fields.
func EncodeShareState(f models.Funnel) string {
	v := url.Values{}
	for i, s := range Normalize(f.Steps) {
		v.Add(shareKeyStep, string(s.Kind)+":"+s.Value)
		if s.Kind == models.StepEvent && s.EventScope == models.ScopeCurrentPath {
			v.Add(shareKeyScope, fmt.Sprintf("%d:%s", i, s.EventScope))
		}
		for _, p := range s.Params {
			v.Add(shareKeyParam, fmt.Sprintf("%d:%s:%s:%s", i, url.QueryEscape(p.Key), p.Operator, p.Value))
		}
	}
	if f.DirectEntryOnly {
		v.Set(shareKeyDirect, "1")
	}
	return v.Encode()
}

// DecodeShareState restores a funnel from EncodeShareState output.
// A leading "?" is accepted.
func DecodeShareState(raw string) (models.Funnel, error) {
	v, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return models.Funnel{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidShareState, err)
	}

	var f models.Funnel
	for _, entry := range v[shareKeyStep] {
		kind, value, ok := strings.Cut(entry, ":")
		if !ok || !models.StepKind(kind).IsValid() {
			return models.Funnel{}, fmt.Errorf("%w: bad step %q", apperrors.ErrInvalidShareState, entry)
		}
		f.Steps = append(f.Steps, models.FunnelStep{Kind: models.StepKind(kind), Value: value})
	}

	for _, entry := range v[shareKeyScope] {
		idx, rest, err := stepRef(entry, len(f.Steps))
		if err != nil {
			return models.Funnel{}, err
		}
		f.Steps[idx].EventScope = models.EventScope(rest)
	}

	for _, entry := range v[shareKeyParam] {
		idx, rest, err := stepRef(entry, len(f.Steps))
		if err != nil {
			return models.Funnel{}, err
		}
		parts := strings.SplitN(rest, ":", 3)
		if len(parts) != 3 || !models.ParamOperator(parts[1]).IsValid() {
			return models.Funnel{}, fmt.Errorf("%w: bad param %q", apperrors.ErrInvalidShareState, entry)
		}
		key, err := url.QueryUnescape(parts[0])
		if err != nil {
			return models.Funnel{}, fmt.Errorf("%w: bad param key %q", apperrors.ErrInvalidShareState, parts[0])
		}
		f.Steps[idx].Params = append(f.Steps[idx].Params, models.StepParam{
			Key:      key,
			Operator: models.ParamOperator(parts[1]),
			Value:    parts[2],
		})
	}

	f.DirectEntryOnly = v.Get(shareKeyDirect) == "1"
	f.Steps = Normalize(f.Steps)
	return f, nil
}

// stepRef splits "<index>:<rest>" and checks the index against the step count.
func stepRef(entry string, steps int) (int, string, error) {
	head, rest, ok := strings.Cut(entry, ":")
	if !ok {
		return 0, "", fmt.Errorf("%w: bad entry %q", apperrors.ErrInvalidShareState, entry)
	}
	idx, err := strconv.Atoi(head)
	if err != nil || idx < 0 || idx >= steps {
		return 0, "", fmt.Errorf("%w: step index %q out of range", apperrors.ErrInvalidShareState, head)
	}
	return idx, rest, nil
}
