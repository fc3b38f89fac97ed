// AngelaMos | 2026
// main_test.go

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSchemaVerify(t *testing.T) {
	out, err := execute(t, "schema", "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "ok:")
	assert.Contains(t, out, "latest 1742000001")
}

func TestSchemaDumpCollection(t *testing.T) {
	out, err := execute(t, "schema", "dump", "--collection", "orders")
	require.NoError(t, err)

	var c struct {
		Name   string `yaml:"name"`
		Fields []struct {
			Name string `yaml:"name"`
		} `yaml:"fields"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &c))
	assert.Equal(t, "orders", c.Name)

	var names []string
	for _, f := range c.Fields {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "uber_delivery_id")
}

func TestSchemaDumpBeforeDispatchFields(t *testing.T) {
	out, err := execute(t, "schema", "dump", "--at", "1742000000", "--collection", "orders")
	require.NoError(t, err)
	assert.NotContains(t, out, "uber_delivery_id")
}

func TestSchemaHistory(t *testing.T) {
	out, err := execute(t, "schema", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "init_collections")
	assert.Contains(t, out, "consolidate_access_policies")
}

func TestFiles(t *testing.T) {
	out, err := execute(t, "files")
	require.NoError(t, err)
	assert.Contains(t, out, "create_orders")
}

func TestDownRequiresConfirmation(t *testing.T) {
	_, err := execute(t, "down", "--database-url", "postgres://unused")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}
