// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Array comprehension routines borrowed from Scheme.

package util

func Every[T any](predicate func(T) bool, slice []T) bool {
	for _, x := range slice {
		if !predicate(x) {
			return false
		}
	}
	return true
}

func Any[T any](predicate func(T) bool, slice []T) bool {
	for _, x := range slice {
		if predicate(x) {
			return true
		}
	}
	return false
}

func Filter[T any](predicate func(T) bool, slice []T) []T {
	result := []T{}
	for _, x := range slice {
		if predicate(x) {
			result = append(result, x)
		}
	}
	return result
}

func Map[S any, T any](function func(S) T, slice []S) []T {
	result := make([]T, len(slice))
	for i, x := range slice {
		result[i] = function(x)
	}
	return result
}

func Push[T any](slice *[]T, thing T) {
	*slice = append(*slice, thing)
}

func Last[T any](slice []T) T {
	return slice[len(slice)-1]
}
