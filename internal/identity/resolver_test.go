package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveProviderPrecedence(t *testing.T) {
	tests := []struct {
		name string
		rec  AuthRecord
		want Provider
	}{
		{
			name: "no links defaults to email",
			rec:  AuthRecord{},
			want: ProviderEmail,
		},
		{
			name: "legacy email tag wins over everything",
			rec: AuthRecord{
				LegacyProvider: ProviderEmail,
				Linked: []LinkedIdentity{
					{Provider: ProviderGoogle, SubjectID: "g-1"},
					{Provider: ProviderLine, SubjectID: "l-1"},
				},
			},
			want: ProviderEmail,
		},
		{
			name: "linked email identity wins over oauth links",
			rec: AuthRecord{
				Linked: []LinkedIdentity{
					{Provider: ProviderGoogle, SubjectID: "g-1"},
					{Provider: ProviderEmail, SubjectID: "e-1"},
				},
			},
			want: ProviderEmail,
		},
		{
			name: "line beats google regardless of link order",
			rec: AuthRecord{
				Linked: []LinkedIdentity{
					{Provider: ProviderGoogle, SubjectID: "g-1"},
					{Provider: ProviderLine, SubjectID: "l-1"},
				},
			},
			want: ProviderLine,
		},
		{
			name: "google only",
			rec: AuthRecord{
				Linked: []LinkedIdentity{{Provider: ProviderGoogle, SubjectID: "g-1"}},
			},
			want: ProviderGoogle,
		},
		{
			name: "legacy line tag alone",
			rec:  AuthRecord{LegacyProvider: ProviderLine},
			want: ProviderLine,
		},
		{
			name: "legacy google with linked line resolves line",
			rec: AuthRecord{
				LegacyProvider: ProviderGoogle,
				Linked:         []LinkedIdentity{{Provider: ProviderLine, SubjectID: "l-1"}},
			},
			want: ProviderLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ResolveProvider(tt.rec))
		})
	}
}

func TestResolveProviderIsDeterministic(t *testing.T) {
	rec := AuthRecord{
		Linked: []LinkedIdentity{
			{Provider: ProviderLine, SubjectID: "l-1"},
			{Provider: ProviderGoogle, SubjectID: "g-1"},
		},
	}
	first := ResolveProvider(rec)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, ResolveProvider(rec))
	}
}

func TestRoleElevated(t *testing.T) {
	require.True(t, RoleAdmin.Elevated())
	require.True(t, RoleSuperAdmin.Elevated())
	require.False(t, RoleCustomer.Elevated())
	require.False(t, RoleAgent.Elevated())
}
