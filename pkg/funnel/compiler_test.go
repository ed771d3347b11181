package funnel

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitelens/sitelens-engine/pkg/apperrors"
	"github.com/sitelens/sitelens-engine/pkg/models"
	sqltemplate "github.com/sitelens/sitelens-engine/pkg/sql"
)

func pathStep(v string) models.FunnelStep {
	return models.FunnelStep{Kind: models.StepPath, Value: v}
}

func eventStep(v string) models.FunnelStep {
	return models.FunnelStep{Kind: models.StepEvent, Value: v}
}

// stageBody returns the body of the named CTE.
func stageBody(t *testing.T, query, name string) string {
	t.Helper()
	re := regexp.MustCompile(`(?s)` + name + ` AS \(\n  (.*?)\n\)`)
	m := re.FindStringSubmatch(query)
	require.NotNil(t, m, "CTE %s not found in:\n%s", name, query)
	return m[1]
}

func TestCountQuery_TwoPathSteps(t *testing.T) {
	query, err := CompileFunnelCount([]models.FunnelStep{pathStep("/"), pathStep("/soknad")}, false)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, "WITH\nevents AS ("))
	assert.Contains(t, query, "step1 AS (")
	assert.Contains(t, query, "step2 AS (")
	assert.NotContains(t, query, "step3 AS (")
	assert.Contains(t, query, "SELECT 1 AS step, '1: /' AS label, COUNT(*) AS sessions FROM step1")
	assert.Contains(t, query, "SELECT 2 AS step, '2: /soknad' AS label, COUNT(*) AS sessions FROM step2")
	assert.Equal(t, 1, strings.Count(query, "UNION ALL"))
	assert.True(t, strings.HasSuffix(query, "ORDER BY step"))

	assert.Contains(t, query, "website_id = @website_id")
	assert.Contains(t, query, "created_at BETWEEN @start_date AND @end_date")
	assert.Contains(t, query, "FROM `analytics-prod.umami.public_website_event`")
}

func TestCountQuery_WildcardUsesLike(t *testing.T) {
	query, err := CompileFunnelCount([]models.FunnelStep{pathStep("/a*"), pathStep("/b")}, false)
	require.NoError(t, err)

	assert.Contains(t, stageBody(t, query, "step1"), "e.url_path LIKE '/a%'")
	assert.Contains(t, stageBody(t, query, "step2"), "e.url_path = '/b'")
}

func TestCountQuery_StagesAreChained(t *testing.T) {
	steps := []models.FunnelStep{pathStep("/"), eventStep("signup"), pathStep("/takk")}
	query, err := CompileFunnelCount(steps, false)
	require.NoError(t, err)

	first := stageBody(t, query, "step1")
	assert.Contains(t, first, "MIN(e.created_at) AS step_time")
	assert.Contains(t, first, "GROUP BY e.session_id")
	assert.NotContains(t, first, "JOIN")

	second := stageBody(t, query, "step2")
	assert.Contains(t, second, "JOIN step1 p ON p.session_id = e.session_id")
	assert.Contains(t, second, "e.created_at > p.step_time")
	assert.Contains(t, second, "e.event_type = 2 AND e.event_name = 'signup'")

	third := stageBody(t, query, "step3")
	assert.Contains(t, third, "JOIN step2 p ON p.session_id = e.session_id")
	assert.Contains(t, third, "e.event_type = 1 AND e.url_path = '/takk'")

	assert.Contains(t, query, "'2: signup' AS label")
}

func TestCountQuery_DirectEntryOnly(t *testing.T) {
	steps := []models.FunnelStep{pathStep("/"), pathStep("/soknad*"), eventStep("sendt")}

	query, err := CompileFunnelCount(steps, true)
	require.NoError(t, err)

	assert.NotContains(t, stageBody(t, query, "step1"), "prev_step_value")
	assert.Contains(t, stageBody(t, query, "step2"), "e.prev_step_value = '/'")
	assert.Contains(t, stageBody(t, query, "step3"), "e.prev_step_value LIKE '/soknad%'")

	loose, err := CompileFunnelCount(steps, false)
	require.NoError(t, err)
	assert.NotContains(t, loose, "e.prev_step_value")
}

func TestCountQuery_EventScopeAndParams(t *testing.T) {
	steps := []models.FunnelStep{
		pathStep("/skjema"),
		{
			Kind:       models.StepEvent,
			Value:      "submit",
			EventScope: models.ScopeCurrentPath,
			Params: []models.StepParam{
				{Key: "plan", Value: "pro", Operator: models.ParamEquals},
				{Key: "source", Value: "o'mail", Operator: models.ParamContains},
			},
		},
	}

	query, err := CompileFunnelCount(steps, false)
	require.NoError(t, err)

	body := stageBody(t, query, "step2")
	assert.Contains(t, body, "e.url_path = '/skjema'")
	assert.Contains(t, body, "EXISTS (SELECT 1 FROM `analytics-prod.umami.public_event_data` d WHERE d.website_event_id = e.event_id AND d.data_key = 'plan' AND d.string_value = 'pro')")
	assert.Contains(t, body, "d.data_key = 'source' AND d.string_value LIKE '%o''mail%'")
}

func TestCountQuery_EscapesValues(t *testing.T) {
	query, err := CompileFunnelCount([]models.FunnelStep{pathStep("/"), eventStep("it's")}, false)
	require.NoError(t, err)

	assert.Contains(t, query, "e.event_name = 'it''s'")
	assert.Contains(t, query, "'2: it''s' AS label")
}

func TestCountQuery_TooFewSteps(t *testing.T) {
	_, err := CompileFunnelCount([]models.FunnelStep{pathStep("/"), pathStep(" ")}, false)
	assert.ErrorIs(t, err, apperrors.ErrTooFewSteps)
}

func TestCountQuery_CustomTables(t *testing.T) {
	c := NewCompiler(Options{Tables: sqltemplate.Tables{Events: "proj.ds.events"}})

	query, err := c.CountQuery([]models.FunnelStep{pathStep("/"), pathStep("/b")}, false)
	require.NoError(t, err)

	assert.Contains(t, query, "FROM `proj.ds.events`")
}

func TestPortableCountQuery(t *testing.T) {
	query, err := defaultCompiler.PortableCountQuery([]models.FunnelStep{pathStep("/"), pathStep("/soknad")}, false, "site'1")
	require.NoError(t, err)

	assert.Contains(t, query, "website_id = 'site''1' [[AND {{created_at}}]]")
	assert.NotContains(t, query, "@website_id")
	assert.NotContains(t, query, "@start_date")
}

func TestPortableCountQuery_AppliesAsTemplate(t *testing.T) {
	query, err := defaultCompiler.PortableCountQuery([]models.FunnelStep{pathStep("/"), pathStep("/soknad")}, false, "site-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"created_at"}, sqltemplate.ExtractParameters(query))

	// Without dates or a clock the optional block stays for the BI tool.
	assert.Contains(t, sqltemplate.Apply(query, models.FilterContext{}), PortableDateFilter)
}
