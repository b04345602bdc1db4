package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNoiseChunk(t *testing.T) {
	t.Run("Empty content is noise", func(t *testing.T) {
		assert.True(t, IsNoiseChunk(""))
		assert.True(t, IsNoiseChunk("   "))
	})

	t.Run("Install commands are noise", func(t *testing.T) {
		assert.True(t, IsNoiseChunk("npm install @dexkit/ui"))
		assert.True(t, IsNoiseChunk("yarn add @dexkit/core\npnpm add ethers"))
		assert.True(t, IsNoiseChunk("go get github.com/ethereum/go-ethereum"))
		assert.True(t, IsNoiseChunk("forge install openzeppelin/openzeppelin-contracts"))
	})

	t.Run("Install with explanation is NOT noise", func(t *testing.T) {
		content := "To add the swap widget to your dApp, install the package:\n\nnpm install @dexkit/widgets\n\nThen wrap your app in the DexKit provider."
		assert.False(t, IsNoiseChunk(content))
	})

	t.Run("Wallet buttons are noise", func(t *testing.T) {
		assert.True(t, IsNoiseChunk("Connect Wallet\nLaunch App"))
		assert.True(t, IsNoiseChunk("Accept all cookies"))
	})

	t.Run("Navigation link lists are noise", func(t *testing.T) {
		content := "[Home](/)\n[Swap](/swap)\n[NFTs](/nft)\n[Docs](/docs)\n[Blog](/blog)"
		assert.True(t, IsNoiseChunk(content))
	})

	t.Run("Content with some links is NOT noise", func(t *testing.T) {
		content := "## Related Resources\n\nTo deploy a token contract, see the [token guide](https://docs.dexkit.com/token).\n\nFees are explained in the [swap docs](https://docs.dexkit.com/swap)."
		assert.False(t, IsNoiseChunk(content))
	})

	t.Run("Short labels are noise", func(t *testing.T) {
		assert.True(t, IsNoiseChunk("Overview"))
		assert.True(t, IsNoiseChunk("Getting Started"))
		assert.True(t, IsNoiseChunk("# API"))
	})

	t.Run("Short code snippet is NOT noise", func(t *testing.T) {
		assert.False(t, IsNoiseChunk("```js\nswap()\n```"))
	})

	t.Run("Copyright is noise when short", func(t *testing.T) {
		assert.True(t, IsNoiseChunk("© 2024 DexKit. All rights reserved."))
		assert.True(t, IsNoiseChunk("Terms of Service | Privacy Policy"))
	})

	t.Run("Real documentation content is NOT noise", func(t *testing.T) {
		content := "## Creating a DEX\n\nDexAppBuilder lets you launch a decentralized exchange without writing code. Pick the networks and tokens you want to list."
		assert.False(t, IsNoiseChunk(content))
	})
}

func TestCleanMarkdownNoise(t *testing.T) {
	t.Run("Strips edit links", func(t *testing.T) {
		input := "Some content\n[Edit this page](https://github.com/edit)\nMore content"
		result := CleanMarkdownNoise(input)
		assert.NotContains(t, result, "Edit this page")
		assert.Contains(t, result, "Some content")
		assert.Contains(t, result, "More content")
	})

	t.Run("Strips table of contents", func(t *testing.T) {
		input := "## Table of Contents\n- [Section 1](#section-1)\n- [Section 2](#section-2)\n\n## Section 1\nReal content here"
		result := CleanMarkdownNoise(input)
		assert.NotContains(t, result, "Table of Contents")
		assert.Contains(t, result, "Section 1")
		assert.Contains(t, result, "Real content here")
	})

	t.Run("Strips skip links", func(t *testing.T) {
		result := CleanMarkdownNoise("Skip to main content\n## Wallets\nConnect a wallet to start.")
		assert.NotContains(t, result, "Skip to")
		assert.Contains(t, result, "Connect a wallet to start.")
	})

	t.Run("Preserves normal content", func(t *testing.T) {
		input := "# API Reference\n\nThe `createApp` function initializes a new DexAppBuilder instance."
		assert.Equal(t, input, CleanMarkdownNoise(input))
	})
}
