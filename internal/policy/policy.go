// Package policy decides which roles may perform which actions.
package policy

import "github.com/tourhub/booking-backend/internal/models"

// Action is a protected operation
type Action string

const (
	ActionBookingCreate     Action = "booking:create"
	ActionBookingRead       Action = "booking:read"
	ActionBookingList       Action = "booking:list"
	ActionPaymentInit       Action = "payment:init"
	ActionInvoiceDownload   Action = "payment:invoice"
	ActionGuideRegister     Action = "guide:register"
	ActionGuideList         Action = "guide:list"
	ActionGuideRead         Action = "guide:read"
	ActionGuideStatusUpdate Action = "guide:status"
	ActionGuideApply        Action = "guide:apply"
	ActionApplicationList   Action = "application:list"
	ActionApplicationReview Action = "application:review"
	ActionTourManage        Action = "tour:manage"
	ActionReviewCreate      Action = "review:create"
	ActionUserUpdate        Action = "user:update"
	ActionUserAdminister    Action = "user:administer"
	ActionUserList          Action = "user:list"
)

type rule struct {
	roles []models.Role
	// owner grants access to any authenticated role when the caller owns the resource
	owner bool
}

var (
	everyone = []models.Role{models.RoleUser, models.RoleGuide, models.RoleAdmin, models.RoleSuperAdmin}
	admins   = []models.Role{models.RoleAdmin, models.RoleSuperAdmin}
)

var rules = map[Action]rule{
	ActionBookingCreate:     {roles: everyone},
	ActionBookingRead:       {roles: admins, owner: true},
	ActionBookingList:       {roles: admins},
	ActionPaymentInit:       {owner: true},
	ActionInvoiceDownload:   {roles: admins, owner: true},
	ActionGuideRegister:     {roles: []models.Role{models.RoleUser, models.RoleGuide}},
	ActionGuideList:         {roles: admins},
	ActionGuideRead:         {roles: everyone},
	ActionGuideStatusUpdate: {roles: admins},
	ActionGuideApply:        {roles: []models.Role{models.RoleUser, models.RoleGuide}},
	ActionApplicationList:   {roles: admins},
	ActionApplicationReview: {roles: admins},
	ActionTourManage:        {roles: admins},
	ActionReviewCreate:      {roles: everyone},
	ActionUserUpdate:        {roles: admins, owner: true},
	ActionUserAdminister:    {roles: admins},
	ActionUserList:          {roles: admins},
}

// Can reports whether role may perform action. owns tells whether the
// caller owns the target resource; pass false when there is none.
func Can(role models.Role, action Action, owns bool) bool {
	r, ok := rules[action]
	if !ok || !role.IsValid() {
		return false
	}
	if r.owner && owns {
		return true
	}
	for _, allowed := range r.roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Roles lists the roles granted an action without ownership
func Roles(action Action) []models.Role {
	return rules[action].roles
}
