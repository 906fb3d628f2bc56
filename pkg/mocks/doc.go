// Package mocks holds gomock mocks of the engine's collaborator interfaces
package mocks

//go:generate mockgen -destination=metadata_source.go -package=mocks github.com/poltergeist/reactor/pkg/graph MetadataSource
//go:generate mockgen -destination=goal_executor.go -package=mocks github.com/poltergeist/reactor/pkg/lifecycle GoalExecutor
