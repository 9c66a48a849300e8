package model

import (
	"testing"
	"time"

	usermodel "HRProject/module/user/model"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBuildPayload(t *testing.T) {
	sender := primitive.NewObjectID()
	recipient := primitive.NewObjectID()
	at := time.Now()

	m := &Message{
		ID:        primitive.NewObjectID(),
		Sender:    sender,
		Recipient: recipient,
		Content:   "hello",
		Read:      true,
		ReadAt:    &at,
		CreatedAt: at,
	}
	refs := map[string]usermodel.UserRef{
		sender.Hex():    {ID: sender.Hex(), Name: "Alice"},
		recipient.Hex(): {ID: recipient.Hex(), Name: "Bob"},
	}

	p := m.BuildPayload(refs)
	assert.Equal(t, m.ID.Hex(), p.ID)
	assert.Equal(t, "Alice", p.Sender.Name)
	assert.Equal(t, "Bob", p.Recipient.Name)
	assert.Equal(t, "hello", p.Content)
	assert.True(t, p.Read)
	assert.NotNil(t, p.ReadAt)
}

// 展示字段缺失时负载仍可用，只是 ref 为零值
func TestBuildPayloadMissingRefs(t *testing.T) {
	m := &Message{
		ID:        primitive.NewObjectID(),
		Sender:    primitive.NewObjectID(),
		Recipient: primitive.NewObjectID(),
		Content:   "orphan",
	}
	p := m.BuildPayload(map[string]usermodel.UserRef{})
	assert.Equal(t, "orphan", p.Content)
	assert.Empty(t, p.Sender.ID)
}
