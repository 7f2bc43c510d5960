// Package schedule decides when a scripted multi-day sequence advances.
//
// Positions are keyed as week*100+day, computed from whole calendar days
// elapsed since the conversation's anchor start date.
package schedule
