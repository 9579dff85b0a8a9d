package variables

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSubstitutor_Substitute(t *testing.T) {
	s := NewSubstitutor(zerolog.Nop())
	vars := Map{"HOST": "db.internal", "PORT": "5432", "NESTED": "{#HOST}", "GREETING": "literal-{user}"}

	tests := []struct {
		name    string
		command string
		inputs  map[string]string
		want    string
	}{
		{
			name:    "no placeholders",
			command: "echo hello",
			want:    "echo hello",
		},
		{
			name:    "file variables",
			command: "psql -h {#HOST} -p {#PORT} && echo {#HOST}",
			want:    "psql -h db.internal -p 5432 && echo db.internal",
		},
		{
			name:    "unresolved file variable left verbatim",
			command: "echo {#MISSING} {#PORT}",
			want:    "echo {#MISSING} 5432",
		},
		{
			name:    "values are not substituted again",
			command: "echo {#NESTED}",
			want:    "echo {#HOST}",
		},
		{
			name:    "env placeholders left for dispatch",
			command: "echo {$TOKEN}",
			want:    "echo {$TOKEN}",
		},
		{
			name:    "interactive inputs",
			command: "git checkout {branch} && echo {branch} {other}",
			inputs:  map[string]string{"branch": "main"},
			want:    "git checkout main && echo main {other}",
		},
		{
			name:    "shell expansion untouched",
			command: "echo ${HOME} {home}",
			inputs:  map[string]string{"HOME": "x", "home": "y"},
			want:    "echo ${HOME} y",
		},
		{
			name:    "shell length expansion untouched",
			command: "echo ${#PORT} {#PORT}",
			want:    "echo ${#PORT} 5432",
		},
		{
			name:    "input syntax inside a file value is kept",
			command: "echo {#GREETING} {user}",
			inputs:  map[string]string{"user": "bob"},
			want:    "echo literal-{user} bob",
		},
		{
			name:    "file syntax inside an input value is kept",
			command: "echo {msg} {#PORT}",
			inputs:  map[string]string{"msg": "{#HOST}"},
			want:    "echo {#HOST} 5432",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Substitute(tt.command, vars, tt.inputs)
			assert.Equal(t, tt.want, got)
			// Substituting the output again with no matching keys is a no-op.
			assert.Equal(t, got, s.Substitute(got, Map{}, nil))
		})
	}
}

func TestExpandEnv(t *testing.T) {
	lookup := EnvLookup(map[string]string{"TOKEN": "secret"})

	out, missing := ExpandEnv("curl -H 'Auth: {$TOKEN}' {$NOT_SET_ANYWHERE_XYZ} ${TOKEN}", lookup)
	assert.Equal(t, "curl -H 'Auth: secret' {$NOT_SET_ANYWHERE_XYZ} ${TOKEN}", out)
	assert.Equal(t, []string{"{$NOT_SET_ANYWHERE_XYZ}"}, missing)
}

func TestEnvLookup_FallsBackToProcess(t *testing.T) {
	t.Setenv("DEPLOY_COMMANDER_TEST_VAR", "from-process")

	v, ok := EnvLookup(nil)("DEPLOY_COMMANDER_TEST_VAR")
	assert.True(t, ok)
	assert.Equal(t, "from-process", v)

	v, ok = EnvLookup(map[string]string{"DEPLOY_COMMANDER_TEST_VAR": "scoped"})("DEPLOY_COMMANDER_TEST_VAR")
	assert.True(t, ok)
	assert.Equal(t, "scoped", v)
}

func TestPlaceholderScans(t *testing.T) {
	cmd := "deploy {#IMAGE} --tag {tag} --token {$TOKEN} --path ${PWD} {tag}"

	assert.Equal(t, []string{"tag"}, InteractivePlaceholders(cmd))
	assert.Equal(t, []string{"{#IMAGE}"}, UnresolvedFileVariables(cmd))
	assert.Equal(t, []string{"{#IMAGE}", "{$TOKEN}", "{tag}"}, Unresolved(cmd))

	assert.Empty(t, UnresolvedFileVariables("echo ${#PATH} ${#ARGS[@]}"))
	assert.Empty(t, Unresolved("echo ${#PATH} ${HOME}"))
}

func TestInterpolateValue(t *testing.T) {
	lookup := func(name string) (string, bool) {
		if name == "USER" {
			return "deploy", true
		}
		return "", false
	}
	assert.Equal(t, "/home/deploy/${UNKNOWN}", InterpolateValue("/home/${USER}/${UNKNOWN}", lookup))
	assert.Equal(t, "plain", InterpolateValue("plain", lookup))
}
