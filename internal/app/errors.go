package app

import "errors"

// Custom application-level errors
var ErrPlanNotFound = errors.New("no crop template for planting")
var ErrRepositoryUnavailable = errors.New("repository unavailable")
var ErrPublishFailure = errors.New("publish failed")
var ErrChannelTargetMissing = errors.New("channel target is not configured")
var ErrNotPlantingOwner = errors.New("planting belongs to another user")
var ErrInvalidPlanting = errors.New("crop name and planting date are required")
