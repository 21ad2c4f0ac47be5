package audit

import (
	"time"

	"github.com/google/uuid"

	"brick/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention and routing.
type EventCategory string

const (
	// CategoryFinancial covers value movement: fills, payouts, burns, claims.
	// These feed reconciliation and need long retention.
	CategoryFinancial EventCategory = "financial"

	// CategoryGovernance covers lifecycle and permission changes made by
	// privileged roles.
	CategoryGovernance EventCategory = "governance"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted by the settlement components after a unit of work commits.
// It is transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID         uuid.UUID
	Category   EventCategory
	Timestamp  time.Time
	Action     string
	Actor      domain.Principal
	Subject    domain.Principal
	EntityType string
	EntityID   string
	PropertyID domain.PropertyID
	Asset      domain.Asset
	Amount     uint64
	Reason     string
	RequestID  string
}

type AuditEvent string

const (
	// Role events
	EventRoleGranted  AuditEvent = "role_granted"
	EventRoleRevoked  AuditEvent = "role_revoked"
	EventBootstrapped AuditEvent = "admin_bootstrapped"

	// Property events
	EventPropertyRegistered  AuditEvent = "property_registered"
	EventPropertyTransition  AuditEvent = "property_status_changed"
	EventPropertyMetadataSet AuditEvent = "property_metadata_updated"

	// Token events
	EventTokenIssued      AuditEvent = "token_issued"
	EventTokenTransferred AuditEvent = "token_transferred"
	EventTokenBurned      AuditEvent = "token_burned"

	// Marketplace events
	EventOrderCreated     AuditEvent = "order_created"
	EventOrderFulfilled   AuditEvent = "order_fulfilled"
	EventOrderCancelled   AuditEvent = "order_cancelled"
	EventOrderRepriced    AuditEvent = "order_repriced"
	EventMarketConfigured AuditEvent = "market_configured"

	// Settlement events
	EventRedemptionRequested  AuditEvent = "redemption_requested"
	EventRedemptionApproved   AuditEvent = "redemption_approved"
	EventRedemptionRejected   AuditEvent = "redemption_rejected"
	EventRedemptionCompleted  AuditEvent = "redemption_completed"
	EventRedemptionCancelled  AuditEvent = "redemption_cancelled"
	EventRewardsDistributed   AuditEvent = "rewards_distributed"
	EventRewardsClaimed       AuditEvent = "rewards_claimed"
	EventSettlementConfigured AuditEvent = "settlement_configured"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRoleGranted:          CategoryGovernance,
	EventRoleRevoked:          CategoryGovernance,
	EventBootstrapped:         CategoryGovernance,
	EventPropertyTransition:   CategoryGovernance,
	EventPropertyMetadataSet:  CategoryGovernance,
	EventMarketConfigured:     CategoryGovernance,
	EventSettlementConfigured: CategoryGovernance,

	EventTokenIssued:         CategoryFinancial,
	EventTokenBurned:         CategoryFinancial,
	EventOrderFulfilled:      CategoryFinancial,
	EventRedemptionCompleted: CategoryFinancial,
	EventRewardsDistributed:  CategoryFinancial,
	EventRewardsClaimed:      CategoryFinancial,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
