package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func TestJSONB(t *testing.T) {
	value, err := NewJSONB(sample{Name: "banner", Items: []string{"a"}}).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"name":"banner","items":["a"]}`, string(value.([]byte)))

	tests := []struct {
		name    string
		src     any
		want    sample
		wantErr bool
	}{
		{name: "bytes", src: []byte(`{"name":"x"}`), want: sample{Name: "x"}},
		{name: "string", src: `{"items":["b"]}`, want: sample{Items: []string{"b"}}},
		{name: "null", src: nil, want: sample{}},
		{name: "wrong type", src: 12, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var j JSONB[sample]
			err := j.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, j.GetValue())
		})
	}
}

func TestSQLBuilderUsesPostgresPlaceholders(t *testing.T) {
	query, args := NewInsertBuilder().
		InsertInto("pbv2_evaluation_audits").
		Cols("id", "tenant_id").
		Values("a-1", "acme").
		Returning("created_at").
		Build()

	assert.Equal(t, "INSERT INTO pbv2_evaluation_audits (id, tenant_id) VALUES ($1, $2) RETURNING created_at", query)
	assert.Equal(t, []any{"a-1", "acme"}, args)
}

func TestConnectionConfigDSN(t *testing.T) {
	c := ConnectionConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "pbv2", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=pbv2 sslmode=disable", c.DSN())
}
