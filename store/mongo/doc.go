// Package mongo implements the store using the official MongoDB driver v2.
// Event streams are appended in place with $push upserts on the
// chat_streams collection.
package mongo
