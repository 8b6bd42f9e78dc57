package task

import (
	"errors"
	"strings"
)

const (
	// MaxGatherWait bounds the gather animation window regardless of config.
	MaxGatherWait = 5.0
	// MaxTravelWait bounds the mission travel window regardless of config.
	MaxTravelWait = 120.0
	// RetreatHealthFloor is the retreat threshold under which a low health check
	// escalates to returning to base.
	RetreatHealthFloor = 30
)

type GatherParams struct {
	ResourceTypes        []string `yaml:"resourceTypes" json:"resourceTypes"`
	GatherTime           float64  `yaml:"gatherTime" json:"gatherTime"`
	MaxGatherTime        float64  `yaml:"maxGatherTime" json:"maxGatherTime"`
	GatherCount          int      `yaml:"gatherCount" json:"gatherCount"`
	ReturnToBase         bool     `yaml:"returnToBase" json:"returnToBase"`
	RetreatHealthPercent int      `yaml:"retreatHealthPercent" json:"retreatHealthPercent"`
}

func DefaultGatherParams() GatherParams {
	return GatherParams{
		ResourceTypes:        []string{"ore", "herb", "wood"},
		GatherTime:           3,
		MaxGatherTime:        120,
		GatherCount:          10,
		ReturnToBase:         true,
		RetreatHealthPercent: 30,
	}
}

func (GatherParams) TaskType() Type { return ResourceGathering }

func (p GatherParams) Validate() error {
	if err := validateNames("resourceTypes", p.ResourceTypes); err != nil {
		return err
	}
	if p.GatherTime <= 0 {
		return errors.New("gatherTime must be positive")
	}
	if p.MaxGatherTime < 0 || p.GatherCount < 0 {
		return errors.New("maxGatherTime and gatherCount must not be negative")
	}
	return validatePercent(p.RetreatHealthPercent)
}

// GatherWait returns the gather animation window in seconds, capped at MaxGatherWait.
func (p GatherParams) GatherWait() float64 {
	return min(p.GatherTime, MaxGatherWait)
}

type CombatParams struct {
	EnemyTypes           []string `yaml:"enemyTypes" json:"enemyTypes"`
	AbilityKeys          []string `yaml:"abilityKeys" json:"abilityKeys"`
	MaxCombatTime        float64  `yaml:"maxCombatTime" json:"maxCombatTime"`
	RetreatHealthPercent int      `yaml:"retreatHealthPercent" json:"retreatHealthPercent"`
}

func DefaultCombatParams() CombatParams {
	return CombatParams{
		EnemyTypes:           []string{"wolf", "boar", "bandit"},
		AbilityKeys:          []string{"1", "2", "3", "4"},
		MaxCombatTime:        60,
		RetreatHealthPercent: 30,
	}
}

func (CombatParams) TaskType() Type { return Combat }

func (p CombatParams) Validate() error {
	if err := validateNames("enemyTypes", p.EnemyTypes); err != nil {
		return err
	}
	for _, k := range p.AbilityKeys {
		if strings.TrimSpace(k) == "" {
			return errors.New("abilityKeys must not contain empty keys")
		}
	}
	if p.MaxCombatTime < 0 {
		return errors.New("maxCombatTime must not be negative")
	}
	return validatePercent(p.RetreatHealthPercent)
}

type MissionParams struct {
	MissionType   string  `yaml:"missionType" json:"missionType"`
	MaxTravelTime float64 `yaml:"maxTravelTime" json:"maxTravelTime"`
}

func DefaultMissionParams() MissionParams {
	return MissionParams{
		MissionType:   "main",
		MaxTravelTime: 60,
	}
}

func (MissionParams) TaskType() Type { return Mission }

func (p MissionParams) Validate() error {
	if strings.TrimSpace(p.MissionType) == "" {
		return errors.New("missionType is required")
	}
	if p.MaxTravelTime < 0 {
		return errors.New("maxTravelTime must not be negative")
	}
	return nil
}

// TravelWait returns the configured travel window in seconds, capped at MaxTravelWait.
func (p MissionParams) TravelWait() float64 {
	return min(p.MaxTravelTime, MaxTravelWait)
}

type MaintenanceParams struct {
	UseHealthItems   bool `yaml:"useHealthItems" json:"useHealthItems"`
	UpgradeEquipment bool `yaml:"upgradeEquipment" json:"upgradeEquipment"`
}

func DefaultMaintenanceParams() MaintenanceParams {
	return MaintenanceParams{UseHealthItems: true, UpgradeEquipment: true}
}

func (MaintenanceParams) TaskType() Type { return InventoryManagement }

func (MaintenanceParams) Validate() error { return nil }

func validateNames(field string, names []string) error {
	if len(names) == 0 {
		return errors.New(field + " must not be empty")
	}
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			return errors.New(field + " must not contain empty names")
		}
	}
	return nil
}

func validatePercent(v int) error {
	if v < 0 || v > 100 {
		return errors.New("retreatHealthPercent must be between 0 and 100")
	}
	return nil
}
