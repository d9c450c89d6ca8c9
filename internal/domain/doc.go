// Package domain models the SOS flood-incident feed published for the
// Hat Yai flood response and the derivations built on top of it.
//
// # Data Source
//
// The upstream feed is a single JSON document refreshed by a collector that
// scrapes rescue requests. The envelope looks like:
//
//	{
//	  "fetched_at": "2025-11-25T09:30:00Z",
//	  "data": { "data": [ <item>, ... ] }
//	}
//
// fetched_at is treated as an opaque freshness token. Upstream has been seen
// to change item content without bumping it, so it is compared but never
// trusted as a skip condition.
//
// # Item Conventions
//
// Coordinates are GeoJSON ordered: location.geometry.coordinates is
// [longitude, latitude]. Items whose coordinates are missing, not a pair of
// numbers, or outside the deployment bounding box (Thailand: longitude 97-106,
// latitude 5-21) are rejected. They are corrupt, not clamped.
//
// Properties live under location.properties. Types are loose upstream: the
// same field may arrive as a string, a number or null. Missing optional
// fields become "" or 0. A status that is missing or not a number becomes
// StatusUnknown, which no status filter selects.
//
// Status values:
//
//	0  waiting for help   (รอการช่วยเหลือ)
//	3  help in progress   (กำลังช่วยเหลือ)
//
// # Victim Types
//
// victims is a free-text list. The value "ทั่วไป" (general) means no specific
// vulnerable group. Records with an empty list are treated as general by the
// ANY filter mode. Entries containing "^" are scraping artifacts and are
// never offered as filter options.
package domain
