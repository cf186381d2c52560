package bids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBIDSPath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wildcards []string
		want      string
		values    map[string]string
	}{
		{
			name:      "subject and session",
			path:      "root/sub-01/ses-01/anat/sub-01_ses-01_T1w.nii.gz",
			wildcards: []string{"subject", "session", "suffix"},
			want:      "root/sub-{subject}/ses-{session}/anat/sub-{subject}_ses-{session}_{suffix}.nii.gz",
			values:    map[string]string{"subject": "01", "session": "01", "suffix": "T1w"},
		},
		{
			name:      "tagged entities use their key",
			path:      "sub-001/dwi/sub-001_acq-98_dir-AP_dwi.nii.gz",
			wildcards: []string{"subject", "acquisition", "direction"},
			want:      "sub-{subject}/dwi/sub-{subject}_acq-{acq}_dir-{dir}_dwi.nii.gz",
			values:    map[string]string{"subject": "001", "acq": "98", "dir": "AP"},
		},
		{
			name:      "unknown entity is its own tag",
			path:      "sub-1/func/sub-1_foo-bar_bold.nii.gz",
			wildcards: []string{"foo"},
			want:      "sub-1/func/sub-1_foo-{foo}_bold.nii.gz",
			values:    map[string]string{"foo": "bar"},
		},
		{
			name:      "missing entity",
			path:      "sub-1/anat/sub-1_T1w.nii.gz",
			wildcards: []string{"run"},
			want:      "sub-1/anat/sub-1_T1w.nii.gz",
			values:    map[string]string{"run": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, values := ParseBIDSPath(tt.path, tt.wildcards)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.values, values)
		})
	}
}

func TestFormat(t *testing.T) {
	got, err := Format("sub-{subject}/sub-{subject}_acq-{acq}.nii", map[string]string{
		"subject": "01",
		"acq":     "98",
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-01/sub-01_acq-98.nii", got)

	_, err = Format("sub-{subject}_run-{run}", map[string]string{"subject": "01"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "run")
}
