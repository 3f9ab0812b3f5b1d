// Package metadata resolves metadata directives against thing resources.
//
// Metadata is stored in a tree that mirrors the data tree of a thing: the
// metadata of the value at data path P with metadata key K lives at P/K.
// Directive keys are relative to the resource path of the command and may
// contain wildcards at the positions allowed for the resource level:
//
//	thing root         features/*/properties/*/<rest>
//	                   features/<id>/properties/*/<rest>
//	                   features/*/<rest>
//	                   attributes/*/<rest>
//	                   */<rest>
//	features           */properties/*/<rest>
//	                   <id>/properties/*/<rest>
//	                   */<rest>
//	single feature     properties/*/<rest>
//	                   */<rest>
//	attributes and
//	(desired)properties */<rest>
//
// desiredProperties is accepted wherever properties is. A wildcard in
// front of properties, attributes or at the features level selects keys;
// the trailing */<rest> form at other levels selects every leaf of the
// resource value. Leaf resources accept no wildcard at all.
package metadata
