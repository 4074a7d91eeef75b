package player

import "errors"

var (
	ErrSkillNotOwned = errors.New("skill not owned")
	ErrSkillOwned    = errors.New("skill already owned")
	ErrSlotsFull     = errors.New("all skill slots are full")
)
