package core

import "clinicore/pkg/domain"

type (
	EntityType       = domain.EntityType
	ClinicalUrgency  = domain.ClinicalUrgency
	ValidatorRole    = domain.ValidatorRole
	ValidationStatus = domain.ValidationStatus
	RuleType         = domain.RuleType
	Base             = domain.Base
	Analysis         = domain.Analysis
	Validator        = domain.Validator
	Validation       = domain.Validation
	ValidationRule   = domain.ValidationRule
	ValidationResult = domain.ValidationResult
	QualityMetric    = domain.QualityMetric
	Event            = domain.Event
	EventKind        = domain.EventKind
)

const (
	EntityAnalysis         = domain.EntityAnalysis
	EntityValidator        = domain.EntityValidator
	EntityValidation       = domain.EntityValidation
	EntityValidationRule   = domain.EntityValidationRule
	EntityValidationResult = domain.EntityValidationResult
	EntityQualityMetric    = domain.EntityQualityMetric
)

const (
	UrgencyLow      = domain.UrgencyLow
	UrgencyNormal   = domain.UrgencyNormal
	UrgencyHigh     = domain.UrgencyHigh
	UrgencyCritical = domain.UrgencyCritical
)

const (
	RoleTechnician   = domain.RoleTechnician
	RolePhysician    = domain.RolePhysician
	RoleCardiologist = domain.RoleCardiologist
	RoleAdmin        = domain.RoleAdmin
)

const (
	StatusPending  = domain.StatusPending
	StatusApproved = domain.StatusApproved
	StatusRejected = domain.StatusRejected
)

const (
	RuleThreshold = domain.RuleThreshold
	RulePattern   = domain.RulePattern
	RuleML        = domain.RuleML
)
