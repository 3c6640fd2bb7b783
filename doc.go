// Package workshop holds the client side session state for the workshop
// application: who is signed in, their live session and their profile row.
//
// Store:
//   - A Store is built explicitly with NewStore and owned by whoever runs the
//     application instance (the CLI process, or one web visitor). There is no
//     package level singleton.
//   - SignIn, SignUp, SignOut and ResetPassword delegate to a Backend. After a
//     successful sign in the profile row is fetched; after a sign up it is
//     created with DefaultPreferences. Profile failures are logged, never
//     returned.
//   - Initialize subscribes to the backend session notifications and returns
//     the handle that ends the subscription.
//
// Backends:
//   - backend/local runs the auth and row storage service in process on bun.
//   - backend/rest talks to a GoTrue/PostgREST compatible hosted service.
//
// Activity sinks:
//   - ActivitySink receives sign in, sign up, sign out, reset and profile sync
//     events. Sinks run best-effort (errors are logged).
package workshop
