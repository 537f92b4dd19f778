package anthropic

// BuildCachedSystemBlocks wraps a static system prompt in a single block with
// an ephemeral cache breakpoint, so repeated classifications reuse it.
func BuildCachedSystemBlocks(text string, ttl string) []SystemBlock {
	if ttl == "" {
		ttl = "5m"
	}
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: ttl},
		},
	}
}
