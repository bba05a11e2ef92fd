package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigArgs(t *testing.T) {
	cases := []struct {
		args []string
		want []string
	}{
		{nil, nil},
		{[]string{"chat", "--no-seed"}, nil},
		{[]string{"-c", "dev.yml", "chat"}, []string{"-c", "dev.yml"}},
		{[]string{"chat", "--config", "dev.yml"}, []string{"-c", "dev.yml"}},
		{[]string{"chat", "-c=dev.yml"}, []string{"-c=dev.yml"}},
		{[]string{"--config=dev.yml", "chat"}, []string{"-c=dev.yml"}},
		{[]string{"chat", "-c"}, nil},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, configArgs(tc.args), "args %v", tc.args)
	}
}
