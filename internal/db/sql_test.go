package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSQLConnection_RejectsBadInput(t *testing.T) {
	_, err := NewSQLConnection("sqlite", "file.db", SQLOpts{})
	assert.ErrorContains(t, err, "unsupported sql driver")

	_, err = NewSQLConnection(DriverMySQL, "", SQLOpts{})
	assert.ErrorContains(t, err, "empty mysql DSN")
}

func TestNewRedisClient_DisabledWithoutAddr(t *testing.T) {
	c, err := NewRedisClient(RedisOpts{})
	assert.NoError(t, err)
	assert.Nil(t, c)
}
