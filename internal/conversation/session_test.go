package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_MergeContact(t *testing.T) {
	e := NewExtractor(nil)

	t.Run("stronger name replaces weaker guess", func(t *testing.T) {
		s := NewSession("biz", "s1")
		s.MergeContact(e.Extract("Jo"))
		filled := s.MergeContact(e.Extract("my name is Dana"))
		assert.Equal(t, []string{"name"}, filled)
		assert.Equal(t, "Dana", s.LeadInfo.Name)
		assert.Equal(t, confidencePhrase, s.NameConfidence)
	})

	t.Run("weaker name never replaces stronger", func(t *testing.T) {
		s := NewSession("biz", "s1")
		s.MergeContact(e.Extract("my name is Dana"))
		s.MergeContact(e.Extract("i'm Sam"))
		assert.Equal(t, "Dana", s.LeadInfo.Name)
	})

	t.Run("collected lead is frozen", func(t *testing.T) {
		s := NewSession("biz", "s1")
		s.MergeContact(e.Extract("i'm Sam, sam@example.com"))
		s.LeadCollected = true
		s.MergeContact(e.Extract("my name is Dana, dana@example.com"))
		assert.Equal(t, "Sam", s.LeadInfo.Name)
		assert.Equal(t, "sam@example.com", s.LeadInfo.Email)
	})
}
