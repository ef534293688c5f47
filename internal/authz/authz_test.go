package authz_test

import (
	"context"
	"testing"

	"github.com/rpggio/blossom/internal/authz"
	"github.com/rpggio/blossom/internal/errs"
	"github.com/rpggio/blossom/internal/ledger"
	"github.com/stretchr/testify/require"
)

var (
	admin = ledger.Identity{MSPID: "AdminMSP"}
	org1  = ledger.Identity{MSPID: "Org1MSP"}
)

func TestPolicy_DefaultRules(t *testing.T) {
	ctx := context.Background()
	p, err := authz.NewPolicy("AdminMSP", nil)
	require.NoError(t, err)

	cases := []struct {
		caller ledger.Identity
		op     authz.Operation
		target string
		want   bool
	}{
		{admin, authz.OpCreateAsset, "", true},
		{org1, authz.OpCreateAsset, "", false},
		{org1, authz.OpInitiateOrder, "Org1MSP", true},
		{org1, authz.OpInitiateOrder, "Org2MSP", false},
		{admin, authz.OpInitiateOrder, "Org1MSP", false},
		{admin, authz.OpGetOrder, "Org1MSP", true},
		{org1, authz.OpGetOrder, "Org1MSP", true},
		{org1, authz.OpGetOrder, "Org2MSP", false},
		{org1, authz.OpListAssets, "", true},
		{ledger.Identity{}, authz.OpListAssets, "", false},
		{admin, authz.Operation("Unknown"), "", false},
	}
	for _, tc := range cases {
		got, err := p.CanPerform(ctx, tc.caller, tc.op, tc.target)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "%s %s %s", tc.caller.MSPID, tc.op, tc.target)
	}
}

func TestPolicy_Overrides(t *testing.T) {
	p, err := authz.NewPolicy("AdminMSP", map[string]string{"ListAssets": "admin"})
	require.NoError(t, err)
	require.Equal(t, authz.RuleAdmin, p.RuleFor(authz.OpListAssets))

	_, err = authz.NewPolicy("AdminMSP", map[string]string{"Nope": "admin"})
	require.Error(t, err)
	_, err = authz.NewPolicy("AdminMSP", map[string]string{"ListAssets": "everyone"})
	require.Error(t, err)
	_, err = authz.NewPolicy("", nil)
	require.Error(t, err)
}

type fakeStub struct {
	ledger.Stub
	caller ledger.Identity
}

func (s fakeStub) Caller() ledger.Identity { return s.caller }

func TestRequire(t *testing.T) {
	ctx := context.Background()
	stub := fakeStub{caller: org1}

	require.NoError(t, authz.Require(ctx, authz.Fixed(true), stub, authz.OpCreateAsset, ""))

	err := authz.Require(ctx, authz.Fixed(false), stub, authz.OpGetOrder, "Org2MSP")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Contains(t, err.Error(), "Org1MSP may not perform GetOrder on Org2MSP")
}

func TestStaticDirectory(t *testing.T) {
	ctx := context.Background()
	d, err := authz.NewStaticDirectory("AdminMSP", map[string]string{
		"Org1MSP": "AUTHORIZED",
		"Org2MSP": "PENDING",
	})
	require.NoError(t, err)

	for account, want := range map[string]bool{"AdminMSP": true, "Org1MSP": true, "Org2MSP": false, "Org3MSP": false} {
		got, err := d.IsAuthorized(ctx, account)
		require.NoError(t, err)
		require.Equal(t, want, got, account)
	}

	require.ErrorIs(t, authz.RequireAccount(ctx, d, "Org2MSP"), errs.ErrUnauthorized)

	_, err = authz.NewStaticDirectory("AdminMSP", map[string]string{"Org1MSP": "MAYBE"})
	require.Error(t, err)
}
