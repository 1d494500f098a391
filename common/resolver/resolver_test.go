package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstantResolver(t *testing.T) {
	res, err := NewConstantResolver("127.0.0.1:30").Resolve()
	assert.Nil(t, err)
	assert.Equal(t, "127.0.0.1:30", res)
}

func TestEnvResolver(t *testing.T) {
	t.Setenv("HOSTSELECTOR_TEST_ADDR", "127.0.0.1:30")
	res, err := NewEnvResolver("HOSTSELECTOR_TEST_ADDR").Resolve()
	assert.Nil(t, err)
	assert.Equal(t, "127.0.0.1:30", res)
}

func TestCompositeResolver(t *testing.T) {
	cr := NewCompositeResolver(
		NewConstantResolver(""),
		NewEnvResolver("HOSTSELECTOR_TEST_ADDR"),
		NewConstantResolver("127.0.0.1:30"))

	t.Setenv("HOSTSELECTOR_TEST_ADDR", "")
	res, err := cr.Resolve()
	assert.Nil(t, err)
	assert.Equal(t, "127.0.0.1:30", res)

	t.Setenv("HOSTSELECTOR_TEST_ADDR", "1.2.3.4:99")
	res, err = cr.Resolve()
	assert.Nil(t, err)
	assert.Equal(t, "1.2.3.4:99", res)

	_, err = NewCompositeResolver(NewConstantResolver("")).Resolve()
	assert.NotNil(t, err)
}
