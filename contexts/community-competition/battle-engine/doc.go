// Package battleengine implements the battle voting engine inside the
// community-competition context.
//
// The module owns the battle lifecycle (draft, voting, completed,
// cancelled), the vote ingestion pipeline with rate limiting and fraud
// scoring, weighted tally recomputation, and end-of-battle recap
// generation. It keeps business rules in application/domain layers and
// isolates infrastructure concerns behind ports and adapters.
package battleengine
