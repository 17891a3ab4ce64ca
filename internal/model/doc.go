// Package model defines the data structures shared by the loader services:
// image fetch tasks and their status enum.
package model
