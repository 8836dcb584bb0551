// Package codec implements the string encoding used on the editor bridge.
//
// Every value that crosses between native code and the engine travels as
// text, often as a string literal inside script source or as JSON that is
// itself embedded in script source. Sanitize protects such values by
// replacing the characters that could end a literal or corrupt a JSON
// document with a '%' escape:
//
//	%  -> %37     &  -> %38     \  -> %92
//	"  -> %34     '  -> %39     {  -> %123
//	}  -> %125    :  -> %58     ,  -> %44
//
// Desanitize reverses the substitution, so for every string s:
//
//	codec.Desanitize(codec.Sanitize(s)) == s
//
// Desanitize is not a validator. Feeding it text that was never sanitized
// decodes any marker-shaped sequences it happens to contain.
//
// The package also renders invocation arguments as script literals
// (ScriptLiteral), encodes JSON with null members omitted (MarshalJSON),
// decodes script results (DecodeResult) and repairs typed JSON documents
// written by the engine (NormalizeInboundJSON).
package codec
