// Package acrcloud talks to the ACRCloud identification API.
//
// Client.Identify uploads one audio window to /v1/identify using the
// HMAC-SHA1 signed multipart protocol and decodes the JSON reply into
// Response. Transport failures are classified with the services error
// markers so callers can wrap Identify in retry.Run.
//
// ProjectMusic and ProjectCustomFile convert the two result lists of a
// Response into match.Candidate values; Response.Event builds the
// match.WindowEvent for one result kind.
package acrcloud
