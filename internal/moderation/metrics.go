package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var submissions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "review_submissions_total",
	Help: "Accepted review submissions by initial moderation status",
}, []string{"status"})

var transitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "review_moderation_transitions_total",
	Help: "Committed manual moderation transitions",
}, []string{"from", "to"})

var noops = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "review_moderation_noops_total",
	Help: "Moderation decisions that found the review already settled",
}, []string{"status"})

var recomputations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "place_rating_recomputations_total",
	Help: "Place rating recomputations by result",
}, []string{"result"})

var screenings = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "review_screenings_total",
	Help: "Automatic screenings by outcome",
}, []string{"outcome"})
