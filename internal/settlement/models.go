package settlement

import (
	"time"

	"brick/pkg/domain"
)

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionApproved  RedemptionStatus = "approved"
	RedemptionRejected  RedemptionStatus = "rejected"
	RedemptionCompleted RedemptionStatus = "completed"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

var redemptionTransitions = map[RedemptionStatus][]RedemptionStatus{
	RedemptionPending:  {RedemptionApproved, RedemptionRejected, RedemptionCancelled},
	RedemptionApproved: {RedemptionCompleted},
}

func canMove(from, to RedemptionStatus) bool {
	for _, next := range redemptionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Redemption is a request to exchange tokens for a cash payout. Tokens sit in
// the redemption escrow from request until rejection, cancellation or burn.
type Redemption struct {
	ID           domain.RedemptionID `json:"id"`
	PropertyID   domain.PropertyID   `json:"property_id"`
	Requester    domain.Principal    `json:"requester"`
	TokenAmount  uint64              `json:"token_amount"`
	PaymentAsset domain.Asset        `json:"payment_asset"`
	Status       RedemptionStatus    `json:"status"`
	RequestedAt  time.Time           `json:"requested_at"`
	ApprovedAt   *time.Time          `json:"approved_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	PayoutAmount uint64              `json:"payout_amount"`
	RejectReason string              `json:"reject_reason,omitempty"`
	ProcessedBy  domain.Principal    `json:"processed_by,omitempty"`
}

// Distribution is one pro-rata payout of property income.
type Distribution struct {
	ID             domain.DistributionID `json:"id"`
	PropertyID     domain.PropertyID     `json:"property_id"`
	PaymentAsset   domain.Asset          `json:"payment_asset"`
	TotalAmount    uint64                `json:"total_amount"`
	FeeAmount      uint64                `json:"fee_amount"`
	PerTokenAmount uint64                `json:"per_token_amount"`
	TotalSupply    uint64                `json:"total_supply"`
	Description    string                `json:"description"`
	DistributedBy  domain.Principal      `json:"distributed_by"`
	DistributedAt  time.Time             `json:"distributed_at"`
	ClaimedAmount  uint64                `json:"claimed_amount"`
}

// Retained is the rounding remainder kept by the protocol.
func (d Distribution) Retained() uint64 {
	return d.TotalAmount - d.FeeAmount - d.PerTokenAmount*d.TotalSupply
}

// Config holds the settlement parameters.
type Config struct {
	PlatformFee           domain.BasisPoints `json:"platform_fee_bps"`
	MaintenanceFee        domain.BasisPoints `json:"maintenance_fee_bps"`
	DistributionThreshold uint64             `json:"distribution_threshold"`
	Treasury              domain.Principal   `json:"treasury"`
	FeeCollector          domain.Principal   `json:"fee_collector"`
	RewardAsset           domain.Asset       `json:"reward_asset"`
}

// RewardFee is the combined fee rate taken from each distribution.
func (c Config) RewardFee() domain.BasisPoints {
	return c.PlatformFee + c.MaintenanceFee
}

type holderKey struct {
	Distribution domain.DistributionID `json:"distribution"`
	Holder       domain.Principal      `json:"holder"`
}
