// Package infer turns commit facts into structured results through a JSON
// completion provider. It owns the four prompt kinds the workflow uses:
// analyze, synthesize, assessContext, and classifyFeedback.
//
// Every result is decoded into a typed value and normalized. Output that
// cannot be decoded or fails validation is reported with
// services.ErrValidation; transport failures keep the marker the provider
// attached.
package infer
