package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/testutil"
)

func TestCreateUser_PromptsAndFoundsFamily(t *testing.T) {
	db := testutil.NewDB(t)
	svc := auth.NewService(db, auth.OptionsFromConfig(testutil.Config(t)), nil, log.Discard())
	var out bytes.Buffer

	err := createUser(context.Background(), db, svc, userOptions{
		Name:   "Ana",
		Email:  "ana@example.com",
		Family: "Silva",
	}, strings.NewReader("secret123\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Password: ")
	assert.Contains(t, out.String(), `admin of family "Silva"`)

	var u models.User
	require.NoError(t, db.Where("email = ?", "ana@example.com").First(&u).Error)
	assert.Equal(t, models.RoleAdmin, u.Role)
	require.NotNil(t, u.FamilyID)

	_, err = svc.Login(context.Background(), auth.LoginInput{Email: "ana@example.com", Password: "secret123"})
	assert.NoError(t, err)
}

func TestCreateUser_EmptyPassword(t *testing.T) {
	db := testutil.NewDB(t)
	svc := auth.NewService(db, auth.OptionsFromConfig(testutil.Config(t)), nil, log.Discard())

	err := createUser(context.Background(), db, svc, userOptions{Name: "Bob", Email: "bob@example.com"},
		strings.NewReader("\n"), &bytes.Buffer{})
	require.EqualError(t, err, "password cannot be empty")
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"serve", "migrate", "user"} {
		c, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
