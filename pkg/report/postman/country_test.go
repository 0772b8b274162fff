package postman

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileScope(t *testing.T) {
	scope, ok := FileScope("accounts_fr+us.json")
	assert.True(t, ok)
	assert.Equal(t, []string{"fr", "us"}, scope)

	scope, ok = FileScope("accounts_all.json")
	assert.True(t, ok)
	assert.Equal(t, []string{"all"}, scope)

	_, ok = FileScope("accounts.json")
	assert.False(t, ok)

	// Uppercase or long codes are not scopes.
	_, ok = FileScope("accounts_FR.json")
	assert.False(t, ok)

	_, ok = FileScope("accounts_france.json")
	assert.False(t, ok)
}

func TestFileMatchesCountry(t *testing.T) {
	assert.True(t, FileMatchesCountry("accounts_fr+us.json", "fr"))
	assert.True(t, FileMatchesCountry("accounts_fr+us.json", "us"))
	assert.False(t, FileMatchesCountry("accounts_fr+us.json", "de"))

	assert.True(t, FileMatchesCountry("accounts_all.json", "de"))

	// No scope suffix: applies everywhere.
	assert.True(t, FileMatchesCountry("accounts.json", "de"))
}

func TestCollectionFileName(t *testing.T) {
	assert.Equal(t, "accounts.json", CollectionFileName("accounts_fr+us.json"))
	assert.Equal(t, "accounts.json", CollectionFileName("accounts_all.json"))
	assert.Equal(t, "accounts.json", CollectionFileName("accounts.json"))
	assert.Equal(t, "other.txt", CollectionFileName("other.txt"))
}
