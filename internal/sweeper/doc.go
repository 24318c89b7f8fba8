// Package sweeper implements the background retention loop: sessions
// idle beyond the TTL lose their cookie jar and aged output files, their
// output directory if it empties, and finally their registry entry.
package sweeper
