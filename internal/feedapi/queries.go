package feedapi

const tagFeedOperation = "WebInlineTopicFeedQuery"

const tagFeedQuery = `query WebInlineTopicFeedQuery($tagSlug: String!, $paging: PagingOptions!, $skipCache: Boolean) {
  personalisedTagFeed(tagSlug: $tagSlug, paging: $paging, skipCache: $skipCache) {
    items {
      ... on TagFeedItem {
        post { id creator { username } title uniqueSlug __typename }
        __typename
      }
      __typename
    }
    pagingInfo { next { source limit from to __typename } __typename }
    __typename
  }
}`

const recommendedFeedOperation = "WebInlineRecommendedFeedQuery"

const recommendedFeedQuery = `query WebInlineRecommendedFeedQuery($paging: PagingOptions, $forceRank: Boolean) {
  webRecommendedFeed(paging: $paging, forceRank: $forceRank) {
    items {
      feedId
      post { id creator { username __typename id } title uniqueSlug __typename }
      __typename
    }
    pagingInfo { next { limit to source __typename } __typename }
    __typename
  }
}`

const engagementOperation = "ClapCountQuery"

const engagementQuery = `query ClapCountQuery($postId: ID!) {
  postResult(id: $postId) {
    __typename
    ... on Post { id clapCount __typename }
  }
}`

const followedTagsOperation = "HomeMainContentHeaderQuery"

const followedTagsQuery = `query HomeMainContentHeaderQuery($paging: PagingOptions) {
  viewer {
    id
    followedTags(paging: $paging) {
      tags { __typename id displayTitle }
      __typename
    }
    __typename
  }
}`
