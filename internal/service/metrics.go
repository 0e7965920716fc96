package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	xpAwardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "betterlyfe",
		Name:      "xp_awarded_total",
		Help:      "Total experience points credited to accounts, by source.",
	}, []string{"source"})

	levelUpsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "betterlyfe",
		Name:      "level_ups_total",
		Help:      "Total level transitions across all accounts.",
	})

	completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "betterlyfe",
		Name:      "completions_total",
		Help:      "Completion operations that changed state, by kind.",
	}, []string{"kind"})

	badgesAwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "betterlyfe",
		Name:      "badges_awarded_total",
		Help:      "Total badges granted to accounts.",
	})
)

// XP 来源，同时作为指标标签
const (
	SourceManual = "manual"
	SourceHabit  = "habit"
	SourceTask   = "task"
	SourceGoal   = "goal"
)

// 仅用于 completions_total 的额外类别
const kindReward = "reward"
