package authz

import (
	"context"
	"fmt"

	"github.com/rpggio/blossom/internal/ledger"
)

// Rule is who may perform an operation.
type Rule string

const (
	// RuleAdmin allows only the administrator organization.
	RuleAdmin Rule = "admin"
	// RuleOwner allows only the account named by the target.
	RuleOwner Rule = "owner"
	// RuleOwnerOrAdmin allows the target account or the administrator.
	RuleOwnerOrAdmin Rule = "owner_or_admin"
	// RuleMember allows any identified caller.
	RuleMember Rule = "member"
	// RuleDeny allows nobody.
	RuleDeny Rule = "deny"
)

func defaultRules() map[Operation]Rule {
	return map[Operation]Rule{
		OpCreateAsset:                   RuleAdmin,
		OpAddLicenses:                   RuleAdmin,
		OpRemoveLicenses:                RuleAdmin,
		OpUpdateEndDate:                 RuleAdmin,
		OpRemoveAsset:                   RuleAdmin,
		OpSendQuote:                     RuleAdmin,
		OpApproveOrder:                  RuleAdmin,
		OpDenyOrder:                     RuleAdmin,
		OpAllocateLicenses:              RuleAdmin,
		OpSendLicenses:                  RuleAdmin,
		OpDeallocateLicenses:            RuleAdmin,
		OpListActivity:                  RuleAdmin,
		OpRequestQuote:                  RuleOwner,
		OpInitiateOrder:                 RuleOwner,
		OpReturnLicenses:                RuleOwner,
		OpListAllocatedLicensesForAsset: RuleOwner,
		OpListOrdersWithExpiredLicenses: RuleOwner,
		OpGetOrder:                      RuleOwnerOrAdmin,
		OpListOrdersForAccount:          RuleOwnerOrAdmin,
		OpDeleteOrder:                   RuleOwnerOrAdmin,
		OpListAssets:                    RuleMember,
		OpGetAssetDetail:                RuleMember,
		OpGetAssetHistory:               RuleMember,
		OpListOrdersForAsset:            RuleMember,
	}
}

// Policy is a rule table keyed by operation. Unknown operations are denied.
type Policy struct {
	adminMSP string
	rules    map[Operation]Rule
}

// NewPolicy builds the default rule table with per-operation overrides.
func NewPolicy(adminMSP string, overrides map[string]string) (*Policy, error) {
	if adminMSP == "" {
		return nil, fmt.Errorf("policy requires an administrator MSP")
	}
	rules := defaultRules()
	for op, rule := range overrides {
		if _, known := rules[Operation(op)]; !known {
			return nil, fmt.Errorf("unknown operation %q in policy", op)
		}
		switch Rule(rule) {
		case RuleAdmin, RuleOwner, RuleOwnerOrAdmin, RuleMember, RuleDeny:
			rules[Operation(op)] = Rule(rule)
		default:
			return nil, fmt.Errorf("unknown rule %q for %s", rule, op)
		}
	}
	return &Policy{adminMSP: adminMSP, rules: rules}, nil
}

// RuleFor returns the rule governing op.
func (p *Policy) RuleFor(op Operation) Rule {
	rule, ok := p.rules[op]
	if !ok {
		return RuleDeny
	}
	return rule
}

// CanPerform evaluates the rule for op. For owner rules target is the account.
func (p *Policy) CanPerform(_ context.Context, caller ledger.Identity, op Operation, target string) (bool, error) {
	if caller.MSPID == "" {
		return false, nil
	}
	isAdmin := caller.MSPID == p.adminMSP
	switch p.RuleFor(op) {
	case RuleAdmin:
		return isAdmin, nil
	case RuleOwner:
		return target != "" && caller.MSPID == target, nil
	case RuleOwnerOrAdmin:
		return isAdmin || (target != "" && caller.MSPID == target), nil
	case RuleMember:
		return true, nil
	default:
		return false, nil
	}
}
