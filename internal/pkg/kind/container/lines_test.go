package container_test

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitesh22rana/provisioner/internal/pkg/kind/container"
)

func TestScanBoundedLines(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", container.MaxLineSize+10)

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "short lines",
			input: "Installing Jenkins\r\nJenkins is up\nno newline",
			want:  []string{"Installing Jenkins", "Jenkins is up", "no newline"},
		},
		{
			name:  "long line is split, the output after it is kept",
			input: long + "\nafter the long line\n",
			want:  []string{long[:container.MaxLineSize], long[container.MaxLineSize:], "after the long line"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Buffer(make([]byte, 0, 64*1024), container.MaxLineSize)
			scanner.Split(container.ScanBoundedLines)

			var got []string
			for scanner.Scan() {
				got = append(got, scanner.Text())
			}
			require.NoError(t, scanner.Err())
			assert.Equal(t, tt.want, got)
		})
	}
}
