package gemini

import (
	"strings"
	"testing"

	"compliance-agent/internal/models"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildParts(t *testing.T) {
	t.Run("text policy", func(t *testing.T) {
		parts := BuildParts(models.Document{Name: "policy.txt", Content: []byte("no overtime pay")})
		require.Len(t, parts, 1)
		assert.Equal(t, genai.Text("Policy Document:\nno overtime pay"), parts[0])
	})

	t.Run("pdf policy", func(t *testing.T) {
		pdf := []byte("%PDF-1.4 ...")
		parts := BuildParts(models.Document{Name: "Handbook.PDF", Content: pdf})
		require.Len(t, parts, 2)
		assert.Equal(t, genai.Blob{MIMEType: "application/pdf", Data: pdf}, parts[0])
		assert.Equal(t, genai.Text(PDFInstruction), parts[1])
	})
}

func TestSystemInstruction(t *testing.T) {
	assert.Contains(t, SystemInstruction, "unified_transactions")
	assert.Contains(t, SystemInstruction, "subject_id, event_type, val, is_violation, source")
	assert.True(t, strings.Contains(SystemInstruction, "REASON:") && strings.Contains(SystemInstruction, "SQL:"))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, zap.NewNop())
	assert.Error(t, err)
}
