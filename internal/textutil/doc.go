// Package textutil provides the fuzzy title comparison used to decide whether
// two recognition results name the same underlying work.
//
// Titles are compared with a token-set ratio: both titles are case folded,
// stripped of diacritics and punctuation, split into token sets, and scored on
// the indel similarity of their sorted intersection and remainders. Variant
// catalogue titles such as "Hello", "Hello (Remix)" and "Hello (feat. X)" score
// 100 against each other because one token set contains the other.
package textutil
