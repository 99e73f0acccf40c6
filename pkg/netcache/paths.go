package netcache

import "strings"

// ClassNetCacheSuffix is appended to a class path to name its RPC table
const ClassNetCacheSuffix = "_ClassNetCache"

// RemoveAllPathPrefixes strips the package and outer-object prefixes of a
// path: everything up to the last '.', unless a '/' appears after it.
// A leading "Default__" marker is dropped as well.
//
//	"/Game/Pawns/PlayerPawn.PlayerPawn_C" -> "PlayerPawn_C"
//	"/Script/Engine.Default__Actor"       -> "Actor"
func RemoveAllPathPrefixes(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return strings.TrimPrefix(path[i+1:], "Default__")
		case '/':
			return strings.TrimPrefix(path, "Default__")
		}
	}
	return strings.TrimPrefix(path, "Default__")
}

// CleanPathSuffix drops trailing instance numbering (digits and underscores)
//
//	"Foo.Bar.Baz_12" -> "Foo.Bar.Baz"
func CleanPathSuffix(path string) string {
	return strings.TrimRightFunc(path, func(r rune) bool {
		return r == '_' || (r >= '0' && r <= '9')
	})
}
