package worker

var Relevant = relevant
