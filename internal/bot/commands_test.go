package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/trailkeys/keybot/core/config"
)

func TestParseRuleArgs(t *testing.T) {
	slots := coreconfig.DefaultForwardSlots()

	t.Run("valid", func(t *testing.T) {
		rule, err := parseRuleArgs([]string{"2", "@src", "@dst", "Unlock", "-", "Key -"}, slots)
		require.NoError(t, err)
		assert.Equal(t, 2, rule.Slot)
		assert.Equal(t, "@src", rule.SourceChannel)
		assert.Equal(t, "@dst", rule.DestinationChannel)
		assert.Equal(t, "Unlock - Key -", rule.CaptionTemplate)
		assert.Equal(t, slots[1].MinBytes, rule.MinBytes)
		assert.Equal(t, slots[1].MaxBytes, rule.MaxBytes)
	})

	t.Run("template without placeholder", func(t *testing.T) {
		_, err := parseRuleArgs([]string{"1", "@src", "@dst", "no", "token"}, slots)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Key -")
	})

	t.Run("bad slot", func(t *testing.T) {
		_, err := parseRuleArgs([]string{"4", "@src", "@dst", "Key -"}, slots)
		assert.Error(t, err)
	})

	t.Run("bad channel", func(t *testing.T) {
		_, err := parseRuleArgs([]string{"1", "src", "@dst", "Key -"}, slots)
		assert.Error(t, err)
	})

	t.Run("too few args", func(t *testing.T) {
		_, err := parseRuleArgs([]string{"1", "@src", "@dst"}, slots)
		assert.Error(t, err)
	})
}
