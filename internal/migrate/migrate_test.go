// AngelaMos | 2026
// migrate_test.go

package migrate

import (
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	createTable = regexp.MustCompile(`CREATE TABLE IF NOT EXISTS (\w+)`)
	dropTable   = regexp.MustCompile(`DROP TABLE IF EXISTS (\w+)`)
)

func TestFilesArePaired(t *testing.T) {
	fs, err := Files()
	require.NoError(t, err)
	require.NotEmpty(t, fs)
	require.Zero(t, len(fs)%2)

	for i := 0; i < len(fs); i += 2 {
		up, down := fs[i], fs[i+1]
		assert.Equal(t, uint(i/2+1), up.Version, "versions are contiguous")
		assert.Equal(t, "up", up.Direction)
		assert.Equal(t, "down", down.Direction)
		assert.Equal(t, up.Version, down.Version)
		assert.Equal(t, up.Name, down.Name)
	}
}

func TestDownDropsEverythingUpCreates(t *testing.T) {
	fs, err := Files()
	require.NoError(t, err)

	for i := 0; i < len(fs); i += 2 {
		up, down := fs[i], fs[i+1]

		var created, dropped []string
		for _, m := range createTable.FindAllStringSubmatch(up.SQL, -1) {
			created = append(created, m[1])
		}
		for _, m := range dropTable.FindAllStringSubmatch(down.SQL, -1) {
			dropped = append(dropped, m[1])
		}

		slices.Reverse(dropped)
		assert.Equal(t, created, dropped, "%d_%s drops in reverse creation order", up.Version, up.Name)
	}
}

func TestUniqueIndexes(t *testing.T) {
	fs, err := Files()
	require.NoError(t, err)

	var ddl strings.Builder
	for _, f := range fs {
		if f.Direction == "up" {
			ddl.WriteString(f.SQL)
		}
	}
	all := strings.Join(strings.Fields(ddl.String()), " ")

	for _, want := range []string{
		"idx_unique_user_store ON store_roles (user_id, store_id)",
		"idx_unique_payment_method ON payment_methods (user_id, stripe_payment_method_id)",
		"idx_unique_customer ON stripe_customers (user_id, stripe_customer_id)",
		"idx_users_email ON users (email)",
		"idx_feature_flags_name ON feature_flags (name)",
	} {
		assert.Contains(t, all, want)
	}
}

func TestParseName(t *testing.T) {
	f, err := parseName("000004_create_orders.down.sql")
	require.NoError(t, err)
	assert.Equal(t, File{Version: 4, Name: "create_orders", Direction: "down"}, f)

	for _, bad := range []string{"readme.md", "000001_x.sql", "x_create.up.sql", "000001.up.sql"} {
		_, err := parseName(bad)
		assert.Error(t, err, bad)
	}
}
